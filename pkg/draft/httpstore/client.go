package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds every request. Zero disables the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithKnownFields lists the field names server rejections are mapped onto.
// Paths that match none of them become form-level messages.
func WithKnownFields(fields ...model.FieldName) Option {
	return func(c *Client) {
		c.known = append(c.known, fields...)
	}
}

// WithLogger injects a zap logger. Nil loggers are ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to a remote Persistence API and implements draft.Store.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	known   []model.FieldName
	logger  *zap.Logger
}

// New creates a client rooted at baseURL; requests go to {baseURL}/drafts.
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpstore: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpstore: parse base url: %w", err)
	}
	c := &Client{
		base:    base,
		http:    http.DefaultClient,
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Create(ctx context.Context, documentType string, values model.Values) (string, error) {
	var rec recordPayload
	body := createRequest{DocumentType: documentType, FieldValues: values.Plain()}
	if err := c.do(ctx, http.MethodPost, "drafts", body, &rec); err != nil {
		return "", err
	}
	if rec.ID == "" {
		return "", errors.New("httpstore: create response without id")
	}
	return rec.ID, nil
}

func (c *Client) Update(ctx context.Context, id string, values model.Values, status draft.Status) (draft.Ack, error) {
	var ack ackResponse
	body := updateRequest{Status: status, FieldValues: values.Plain()}
	if err := c.do(ctx, http.MethodPut, "drafts/"+url.PathEscape(id), body, &ack); err != nil {
		return draft.Ack{}, err
	}
	return draft.Ack{Changed: ack.Changed}, nil
}

func (c *Client) Get(ctx context.Context, id string) (draft.Record, error) {
	var rec recordPayload
	if err := c.do(ctx, http.MethodGet, "drafts/"+url.PathEscape(id), nil, &rec); err != nil {
		return draft.Record{}, err
	}
	out, err := rec.record()
	if err != nil {
		return draft.Record{}, fmt.Errorf("httpstore: get %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "drafts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpstore: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(reqCtx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("httpstore: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpstore: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpstore: read response: %w", err)
	}
	c.logger.Debug("persistence api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpstore: decode response: %w", err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response, data []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(data, &payload)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return draft.ErrNotFound
	case http.StatusConflict:
		return draft.ErrFinalized
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		errs := payload.Errors
		if len(errs) == 0 && payload.Message != "" {
			errs = map[string][]string{"": {payload.Message}}
		}
		mapped := validation.MapPayload(c.known, errs)
		return &draft.RejectedError{Fields: mapped.Fields, Form: mapped.Form}
	}

	msg := strings.TrimSpace(payload.Message)
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("httpstore: %s %s: unexpected status %d: %s", method, path, resp.StatusCode, msg)
}

var _ draft.Store = (*Client)(nil)
