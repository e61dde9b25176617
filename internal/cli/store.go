package cli

import (
	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/store/sqlite"
	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/draft/httpstore"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
)

// durableLog is the notification history kept by the sqlite driver.
type durableLog struct {
	store *sqlite.Store
}

func (a *app) openStore(registry *steps.Registry) error {
	cfg := a.cfg.Store
	switch cfg.Driver {
	case config.DriverMemory:
		a.store = draft.NewMemoryStore()
	case config.DriverHTTP:
		client, err := httpstore.New(cfg.BaseURL,
			httpstore.WithTimeout(cfg.Timeout),
			httpstore.WithKnownFields(knownFields(registry)...),
			httpstore.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.store = client
	default:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.store = store
		a.durable = &durableLog{store: store}
	}
	return nil
}

// knownFields is the union of every registered field name, used to map
// server-side rejections back onto fields.
func knownFields(registry *steps.Registry) []model.FieldName {
	seen := make(map[model.FieldName]struct{})
	var out []model.FieldName
	for _, name := range registry.List() {
		def, err := registry.Get(name)
		if err != nil {
			continue
		}
		for _, field := range def.FieldNames() {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			out = append(out, field)
		}
	}
	return out
}
