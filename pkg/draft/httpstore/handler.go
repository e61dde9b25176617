package httpstore

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// Handler serves a draft.Store over the Persistence API routes:
//
//	POST   /drafts
//	PUT    /drafts/{id}
//	GET    /drafts/{id}
//	DELETE /drafts/{id}
type Handler struct {
	store  draft.Store
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewHandler exposes store. A nil logger falls back to a no-op logger.
func NewHandler(store draft.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: store, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /drafts", h.create)
	h.mux.HandleFunc("PUT /drafts/{id}", h.update)
	h.mux.HandleFunc("GET /drafts/{id}", h.get)
	h.mux.HandleFunc("DELETE /drafts/{id}", h.delete)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return
	}
	if req.DocumentType == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorPayload{Errors: map[string][]string{"documentType": {"required"}}})
		return
	}
	values, err := model.FromPlain(req.FieldValues)
	if err != nil {
		rejectValues(w, err)
		return
	}
	id, err := h.store.Create(r.Context(), req.DocumentType, values)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayload(rec))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return
	}
	if req.Status == "" {
		req.Status = draft.StatusDraft
	}
	if !req.Status.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, errorPayload{Errors: map[string][]string{"status": {"unknown status"}}})
		return
	}
	values, err := model.FromPlain(req.FieldValues)
	if err != nil {
		rejectValues(w, err)
		return
	}
	ack, err := h.store.Update(r.Context(), r.PathValue("id"), values, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Changed: ack.Changed})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(rec))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var rejected *draft.RejectedError
	switch {
	case errors.Is(err, draft.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorPayload{Message: "draft not found"})
	case errors.Is(err, draft.ErrFinalized):
		writeJSON(w, http.StatusConflict, errorPayload{Message: "draft is finalized"})
	case errors.As(err, &rejected):
		payload := errorPayload{Errors: map[string][]string{}}
		for _, f := range rejected.Fields {
			key := "/fieldValues/" + string(f.Field)
			payload.Errors[key] = append(payload.Errors[key], f.Message)
		}
		if len(rejected.Form) > 0 {
			payload.Errors["form"] = rejected.Form
		}
		writeJSON(w, http.StatusUnprocessableEntity, payload)
	default:
		h.logger.Error("persistence api failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorPayload{Message: "internal error"})
	}
}

// rejectValues answers 422 for field values that are not scalars.
func rejectValues(w http.ResponseWriter, err error) {
	field := "fieldValues"
	var verr *model.ValueError
	if errors.As(err, &verr) {
		field = string(verr.Field)
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorPayload{Errors: map[string][]string{field: {"unsupported value"}}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
