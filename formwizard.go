package formwizard

import (
	"context"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/orchestrator"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Controller drives one wizard session; alias exported via the root package
// for convenience.
type Controller = wizard.Controller

// Definition is the static step configuration of a document type.
type Definition = steps.Definition

// Values holds field values keyed by field name.
type Values = model.Values

// Report summarises the validation state of a stored draft.
type Report = orchestrator.Report

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// Start opens a new session for documentType using an orchestrator built
// from options. It is the simplest entry point for callers that keep a
// single session.
func Start(ctx context.Context, documentType string, options ...orchestrator.Option) (*wizard.Controller, error) {
	return orchestrator.New(options...).Start(ctx, documentType)
}
