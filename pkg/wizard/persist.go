package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
)

type saveFunc func(context.Context, model.Values) (draft.Result, error)

// Save persists a snapshot of the current values. The dirty flag clears only
// when no mutation happened while the save was in flight. When ctx ends
// before the store answers, Save returns ctx.Err() and the save completes in
// the background; a late failure is delivered to the notifier.
func (c *Controller) Save(ctx context.Context) (draft.Result, error) {
	if err := ctx.Err(); err != nil {
		return draft.Result{}, err
	}
	c.mu.Lock()
	if err := c.editableLocked("save"); err != nil {
		c.mu.Unlock()
		return draft.Result{}, err
	}
	snapshot := c.values.Clone()
	rev := c.revision
	c.mu.Unlock()

	return c.persist(ctx, notify.KindSaveFailed, c.saver.Save, snapshot, func(_ draft.Result, err error) {
		if err == nil {
			c.markSavedLocked(rev)
		}
	})
}

// Autosave saves the session when it is dirty. Concurrent triggers share one
// save whose snapshot is taken when it starts.
func (c *Controller) Autosave(ctx context.Context) (draft.Result, error) {
	v, err, _ := c.flights.Do("autosave", func() (any, error) {
		if !c.IsDirty() {
			return draft.Result{ID: c.saver.Identity()}, nil
		}
		return c.Save(ctx)
	})
	if err != nil {
		return draft.Result{}, err
	}
	return v.(draft.Result), nil
}

func (c *Controller) autosaveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if c.Phase() != PhaseEditing {
				continue
			}
			if _, err := c.Autosave(context.Background()); err != nil {
				c.report(notify.KindSaveFailed, fmt.Errorf("autosave: %w", err))
			}
		}
	}
}

// persist runs fn detached from ctx cancellation. complete runs under the
// controller lock once the store answers, whether or not the caller is
// still waiting.
func (c *Controller) persist(ctx context.Context, kind notify.Kind, fn saveFunc, snapshot model.Values, complete func(draft.Result, error)) (draft.Result, error) {
	type outcome struct {
		res draft.Result
		err error
	}
	done := make(chan outcome, 1)
	var handoff sync.Mutex
	waiting := true

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		res, err := fn(context.WithoutCancel(ctx), snapshot)

		c.mu.Lock()
		complete(res, err)
		closed := c.closed
		c.mu.Unlock()

		handoff.Lock()
		delivered := waiting
		if delivered {
			done <- outcome{res: res, err: err}
		}
		handoff.Unlock()

		if err != nil && (!delivered || closed) {
			c.report(kind, err)
		}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		handoff.Lock()
		waiting = false
		handoff.Unlock()
		select {
		case out := <-done:
			return out.res, out.err
		default:
			return draft.Result{}, ctx.Err()
		}
	}
}

func (c *Controller) markSavedLocked(rev uint64) {
	if rev > c.savedRev {
		c.savedRev = rev
	}
}

func (c *Controller) report(kind notify.Kind, err error) {
	id := c.saver.Identity()
	message := "draft save failed"
	if kind == notify.KindFinalizeFailed {
		message = "draft finalize failed"
	}
	if nerr := c.notifier.Notify(context.Background(), notify.New(kind, id, message, err)); nerr != nil {
		c.logger.Error("notification delivery failed",
			zap.String("draft_id", id),
			zap.Error(nerr),
			zap.NamedError("cause", err))
	}
}
