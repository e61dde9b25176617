package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Status is the lifecycle state of a persisted document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusFinalized
}

// Record is the persisted form of a document session.
type Record struct {
	ID           string       `json:"id"`
	DocumentType string       `json:"documentType"`
	Status       Status       `json:"status"`
	Values       model.Values `json:"values"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Ack acknowledges an update. Changed is false when the store already held an
// identical payload and status.
type Ack struct {
	Changed bool `json:"changed"`
}

// Store is the persistence contract the gateway talks to. Implementations
// must treat an Update with identical values and status as a no-op and must
// reject any Update of a FINALIZED record with ErrFinalized.
type Store interface {
	Create(ctx context.Context, documentType string, values model.Values) (string, error)
	Update(ctx context.Context, id string, values model.Values, status Status) (Ack, error)
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by stores able to enumerate records of one type.
type Lister interface {
	List(ctx context.Context, documentType string) ([]Record, error)
}

var (
	// ErrNotFound reports an unknown draft identity.
	ErrNotFound = errors.New("draft: not found")
	// ErrFinalized reports a write against a finalized document.
	ErrFinalized = errors.New("draft: document is finalized")
	// ErrIdentityConflict reports an attempt to assign a second identity.
	ErrIdentityConflict = errors.New("draft: identity already assigned")
)

// PersistenceError wraps a failed store round trip. It never carries
// validation data for local fields; server rejections are wrapped as
// *RejectedError.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ID != "" {
		return fmt.Sprintf("draft: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("draft: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RejectedError is a server-side validation rejection.
type RejectedError struct {
	Fields model.ValidationErrors
	Form   []string
}

func (e *RejectedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Fields)+len(e.Form))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	parts = append(parts, e.Form...)
	if len(parts) == 0 {
		return "draft: rejected"
	}
	return "draft: rejected: " + strings.Join(parts, "; ")
}

// Result describes the outcome of a gateway save.
type Result struct {
	ID      string
	Status  Status
	Created bool
	Changed bool
}
