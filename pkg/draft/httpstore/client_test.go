package httpstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/draft/httpstore"
	"github.com/goliatone/go-formwizard/pkg/model"
)

func newServer(t *testing.T, store draft.Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(httpstore.NewHandler(store, nil))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, options ...httpstore.Option) *httpstore.Client {
	t.Helper()
	client, err := httpstore.New(baseURL, options...)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := draft.NewMemoryStore()
	client := newClient(t, newServer(t, mem).URL+"/")

	id, err := client.Create(ctx, "handover-report", model.Values{"title": "A", "staff_count": 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ack, err := client.Update(ctx, id, model.Values{"title": "A", "staff_count": 4}, draft.StatusDraft)
	if err != nil || ack.Changed {
		t.Fatalf("identical update: %#v %v", ack, err)
	}
	ack, err = client.Update(ctx, id, model.Values{"title": "B", "staff_count": 4}, draft.StatusDraft)
	if err != nil || !ack.Changed {
		t.Fatalf("update: %#v %v", ack, err)
	}

	rec, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := model.Values{"title": "B", "staff_count": float64(4)}
	if diff := cmp.Diff(want, rec.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if rec.Status != draft.StatusDraft || rec.DocumentType != "handover-report" || rec.CreatedAt.IsZero() {
		t.Fatalf("record %#v", rec)
	}

	if _, err := client.Update(ctx, id, rec.Values, draft.StatusFinalized); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := client.Update(ctx, id, model.Values{"title": "C"}, draft.StatusDraft); !errors.Is(err, draft.ErrFinalized) {
		t.Fatalf("update after finalize: %v", err)
	}

	if err := client.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Get(ctx, id); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestGatewayOverHTTP(t *testing.T) {
	ctx := context.Background()
	mem := draft.NewMemoryStore()
	client := newClient(t, newServer(t, mem).URL)
	gw, err := draft.NewGateway(client, "doc")
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	first, err := gw.Save(ctx, model.Values{"title": "one"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := gw.Save(ctx, model.Values{"title": "two"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mem.Creates() != 1 {
		t.Fatalf("creates = %d", mem.Creates())
	}
	rec, _ := mem.Get(ctx, first.ID)
	if rec.Values.String("title") != "two" {
		t.Fatalf("stored %q", rec.Values.String("title"))
	}
}

func TestRejectionsMapOntoFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"/fieldValues/title":["too short"],"non_field_errors":["quota exceeded"]}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL, httpstore.WithKnownFields("title"))
	_, err := client.Create(context.Background(), "doc", model.Values{"title": "x"})

	var rejected *draft.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	wantFields := model.ValidationErrors{{Field: "title", Message: "too short"}}
	if diff := cmp.Diff(wantFields, rejected.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"quota exceeded"}, rejected.Form); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestUnexpectedStatusAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			time.Sleep(100 * time.Millisecond)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL, httpstore.WithTimeout(20*time.Millisecond))
	if err := client.Delete(context.Background(), "x"); err == nil {
		t.Fatalf("expected status error")
	}
	if _, err := client.Get(context.Background(), "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestHandlerValidatesRequests(t *testing.T) {
	srv := newServer(t, draft.NewMemoryStore())

	resp, err := http.Post(srv.URL+"/drafts", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body status = %d", resp.StatusCode)
	}

	client := newClient(t, srv.URL)
	_, err = client.Create(context.Background(), "", nil)
	var rejected *draft.RejectedError
	if !errors.As(err, &rejected) || len(rejected.Form) != 1 {
		t.Fatalf("missing document type: %v", err)
	}
}

func TestNonScalarValuesAreRejected(t *testing.T) {
	mem := draft.NewMemoryStore()
	srv := newServer(t, mem)
	id, err := mem.Create(context.Background(), "doc", model.Values{"title": "Plan"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	body := `{"fieldValues":{"title":"Plan","owner_id":["AB1234"]},"status":"DRAFT"}`
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/drafts/"+id, strings.NewReader(body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		var payload struct {
			Errors map[string][]string `json:"errors"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity || decodeErr != nil {
			t.Fatalf("put %d: status = %d (%v)", i, resp.StatusCode, decodeErr)
		}
		if diff := cmp.Diff(map[string][]string{"owner_id": {"unsupported value"}}, payload.Errors); diff != "" {
			t.Fatalf("errors mismatch (-want +got):\n%s", diff)
		}
	}

	resp, err := http.Post(srv.URL+"/drafts", "application/json", strings.NewReader(`{"documentType":"doc","fieldValues":{"tags":{"a":1}}}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity || mem.Creates() != 1 {
		t.Fatalf("create status = %d, creates = %d", resp.StatusCode, mem.Creates())
	}

	bad, err := mem.Create(context.Background(), "doc", model.Values{"owner_id": []any{"AB1234"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := newClient(t, srv.URL).Get(context.Background(), bad); !errors.Is(err, model.ErrUnsupportedValue) {
		t.Fatalf("get of non-scalar record: %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := httpstore.New(" "); err == nil {
		t.Fatalf("expected base url error")
	}
}
