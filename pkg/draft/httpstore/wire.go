package httpstore

import (
	"time"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
)

type createRequest struct {
	DocumentType string         `json:"documentType"`
	FieldValues  map[string]any `json:"fieldValues"`
}

type updateRequest struct {
	Status      draft.Status   `json:"status"`
	FieldValues map[string]any `json:"fieldValues"`
}

type ackResponse struct {
	Changed bool `json:"changed"`
}

type recordPayload struct {
	ID           string         `json:"id"`
	DocumentType string         `json:"documentType,omitempty"`
	Status       draft.Status   `json:"status"`
	FieldValues  map[string]any `json:"fieldValues"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type errorPayload struct {
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func toPayload(rec draft.Record) recordPayload {
	return recordPayload{
		ID:           rec.ID,
		DocumentType: rec.DocumentType,
		Status:       rec.Status,
		FieldValues:  rec.Values.Plain(),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func (p recordPayload) record() (draft.Record, error) {
	values, err := model.FromPlain(p.FieldValues)
	if err != nil {
		return draft.Record{}, err
	}
	return draft.Record{
		ID:           p.ID,
		DocumentType: p.DocumentType,
		Status:       p.Status,
		Values:       values,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}
