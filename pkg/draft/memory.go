package draft

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// MemoryStore is a concurrency-safe in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	creates atomic.Int64
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Creates returns the number of drafts created so far.
func (s *MemoryStore) Creates() int {
	return int(s.creates.Load())
}

func (s *MemoryStore) Create(ctx context.Context, documentType string, values model.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.now().UTC()
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{
		ID:           id,
		DocumentType: documentType,
		Status:       StatusDraft,
		Values:       values.Clone(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.creates.Add(1)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, values model.Values, status Status) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Ack{}, ErrNotFound
	}
	if rec.Status == StatusFinalized {
		return Ack{}, ErrFinalized
	}
	if rec.Status == status && rec.Values.Equal(values) {
		return Ack{}, nil
	}
	rec.Values = values.Clone()
	rec.Status = status
	rec.UpdatedAt = s.now().UTC()
	s.records[id] = rec
	return Ack{Changed: true}, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Values = rec.Values.Clone()
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// List returns records of documentType, most recently updated first.
func (s *MemoryStore) List(ctx context.Context, documentType string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if documentType != "" && rec.DocumentType != documentType {
			continue
		}
		rec.Values = rec.Values.Clone()
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Lister = (*MemoryStore)(nil)
)
