package draft

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Option customises a Gateway.
type Option func(*Gateway)

// WithIdentity seeds the gateway with the identity of a resumed draft.
func WithIdentity(id string) Option {
	return func(g *Gateway) {
		g.identity = id
	}
}

// WithLogger injects a zap logger. Nil loggers are ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gateway mediates every save of one document session. Saves are
// single-flight: a save issued while another is in progress waits for it, so
// the first create always publishes its identity before a queued save runs.
type Gateway struct {
	store        Store
	documentType string
	logger       *zap.Logger

	saveMu     sync.Mutex
	lastSaved  model.Values
	lastStatus Status

	stateMu  sync.RWMutex
	identity string
}

// NewGateway binds a store to one document type.
func NewGateway(store Store, documentType string, options ...Option) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("draft: store is required")
	}
	if documentType == "" {
		return nil, fmt.Errorf("draft: document type is required")
	}
	g := &Gateway{
		store:        store,
		documentType: documentType,
		logger:       zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// DocumentType returns the type the gateway persists.
func (g *Gateway) DocumentType() string {
	return g.documentType
}

// Identity returns the draft identity, or "" before the first create.
func (g *Gateway) Identity() string {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.identity
}

// Save persists values as a DRAFT. The first call creates the draft; later
// calls update it. Identical consecutive payloads skip the round trip.
func (g *Gateway) Save(ctx context.Context, values model.Values) (Result, error) {
	return g.persist(ctx, values, StatusDraft)
}

// Finalize persists values with status FINALIZED, creating the draft first
// when no identity exists yet.
func (g *Gateway) Finalize(ctx context.Context, values model.Values) (Result, error) {
	return g.persist(ctx, values, StatusFinalized)
}

func (g *Gateway) persist(ctx context.Context, values model.Values, status Status) (Result, error) {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	op := "update"
	if status == StatusFinalized {
		op = "finalize"
	}

	id := g.Identity()
	if err := ctx.Err(); err != nil {
		return Result{}, &PersistenceError{Op: op, ID: id, Err: err}
	}

	snapshot := values.Clone()
	result := Result{ID: id, Status: status}

	if id == "" {
		created, err := g.store.Create(ctx, g.documentType, snapshot)
		if err != nil {
			g.logger.Warn("draft create failed",
				zap.String("document_type", g.documentType),
				zap.Error(err))
			return Result{}, &PersistenceError{Op: "create", Err: err}
		}
		if err := g.setIdentity(created); err != nil {
			return Result{}, err
		}
		g.logger.Debug("draft created",
			zap.String("document_type", g.documentType),
			zap.String("draft_id", created))
		g.lastSaved, g.lastStatus = snapshot, StatusDraft
		result = Result{ID: created, Status: StatusDraft, Created: true, Changed: true}
		if status == StatusDraft {
			return result, nil
		}
		id = created
		result.Status = status
	}

	if g.lastSaved != nil && g.lastStatus == status && g.lastSaved.Equal(snapshot) {
		return result, nil
	}

	ack, err := g.store.Update(ctx, id, snapshot, status)
	if err != nil {
		g.logger.Warn("draft update failed",
			zap.String("draft_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return result, &PersistenceError{Op: op, ID: id, Err: err}
	}
	g.lastSaved, g.lastStatus = snapshot, status
	result.Changed = result.Changed || ack.Changed
	return result, nil
}

func (g *Gateway) setIdentity(id string) error {
	if id == "" {
		return &PersistenceError{Op: "create", Err: fmt.Errorf("store returned an empty identity")}
	}
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if g.identity != "" && g.identity != id {
		return fmt.Errorf("%w: have %s, got %s", ErrIdentityConflict, g.identity, id)
	}
	g.identity = id
	return nil
}
