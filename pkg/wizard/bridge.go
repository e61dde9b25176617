package wizard

import "context"

// GuardState is what a navigation guard reads from the active wizard before
// letting the user leave. Each value is bound to one controller.
type GuardState interface {
	IsDirty() bool
	SaveGateReached() bool
	DraftIdentity() string
	Save(ctx context.Context) error
	Snapshot() GuardSnapshot
}

// GuardSnapshot is a consistent read of the guard fields.
type GuardSnapshot struct {
	Dirty           bool
	SaveGateReached bool
	DraftIdentity   string
}

// Prompt is the exit prompt a guard should show.
type Prompt int

const (
	// PromptNone lets the user leave without asking.
	PromptNone Prompt = iota
	// PromptDiscard asks whether to discard unsaved changes.
	PromptDiscard
	// PromptSaveOrLeave offers save-and-leave, save-and-stay or leave.
	PromptSaveOrLeave
)

func (p Prompt) String() string {
	switch p {
	case PromptDiscard:
		return "discard"
	case PromptSaveOrLeave:
		return "save-or-leave"
	default:
		return "none"
	}
}

// GuardPrompt chooses the exit prompt for state.
func GuardPrompt(state GuardState) Prompt {
	snap := state.Snapshot()
	switch {
	case !snap.Dirty:
		return PromptNone
	case snap.SaveGateReached:
		return PromptSaveOrLeave
	default:
		return PromptDiscard
	}
}

// Bridge returns the guard view of this controller.
func (c *Controller) Bridge() GuardState {
	return bridge{c: c}
}

type bridge struct {
	c *Controller
}

func (b bridge) IsDirty() bool         { return b.c.IsDirty() }
func (b bridge) SaveGateReached() bool { return b.c.SaveGateReached() }
func (b bridge) DraftIdentity() string { return b.c.saver.Identity() }

func (b bridge) Save(ctx context.Context) error {
	_, err := b.c.Save(ctx)
	return err
}

func (b bridge) Snapshot() GuardSnapshot {
	s := b.c.Snapshot()
	return GuardSnapshot{
		Dirty:           s.Dirty,
		SaveGateReached: s.SaveGateReached,
		DraftIdentity:   s.DraftIdentity,
	}
}
