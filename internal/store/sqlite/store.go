// Package sqlite persists drafts and durable notifications in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
)

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements draft.Store, draft.Lister and notify.Notifier.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	draftsTable := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		document_type TEXT NOT NULL,
		status TEXT NOT NULL,
		field_values TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_type ON drafts(document_type, updated_at);
	`

	notificationsTable := `
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		draft_id TEXT,
		message TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	);
	`

	for _, table := range []string{draftsTable, notificationsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("sqlite: create table: %w", err)
		}
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, documentType string, values model.Values) (string, error) {
	payload, err := encodeValues(values)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := s.now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, document_type, status, field_values, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, documentType, string(draft.StatusDraft), payload, now, now)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert draft: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, id string, values model.Values, status draft.Status) (draft.Ack, error) {
	if !status.Valid() {
		return draft.Ack{}, fmt.Errorf("sqlite: invalid status %q", status)
	}
	payload, err := encodeValues(values)
	if err != nil {
		return draft.Ack{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return draft.Ack{}, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var current, stored string
	err = tx.QueryRowContext(ctx, `SELECT status, field_values FROM drafts WHERE id = ?`, id).Scan(&current, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.Ack{}, draft.ErrNotFound
	}
	if err != nil {
		return draft.Ack{}, fmt.Errorf("sqlite: select draft: %w", err)
	}
	if draft.Status(current) == draft.StatusFinalized {
		return draft.Ack{}, draft.ErrFinalized
	}
	existing, err := decodeValues(stored)
	if err != nil {
		return draft.Ack{}, err
	}
	if draft.Status(current) == status && existing.Equal(values) {
		return draft.Ack{}, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE drafts SET status = ?, field_values = ?, updated_at = ? WHERE id = ?`,
		string(status), payload, s.now().UTC().Format(timeLayout), id)
	if err != nil {
		return draft.Ack{}, fmt.Errorf("sqlite: update draft: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return draft.Ack{}, fmt.Errorf("sqlite: commit: %w", err)
	}
	return draft.Ack{Changed: true}, nil
}

func (s *Store) Get(ctx context.Context, id string) (draft.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_type, status, field_values, created_at, updated_at FROM drafts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.Record{}, draft.ErrNotFound
	}
	return rec, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete draft: %w", err)
	}
	if n == 0 {
		return draft.ErrNotFound
	}
	return nil
}

// List returns the drafts of documentType, most recently updated first. An
// empty documentType lists every draft.
func (s *Store) List(ctx context.Context, documentType string) ([]draft.Record, error) {
	query := `SELECT id, document_type, status, field_values, created_at, updated_at FROM drafts`
	var args []any
	if documentType != "" {
		query += ` WHERE document_type = ?`
		args = append(args, documentType)
	}
	query += ` ORDER BY updated_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list drafts: %w", err)
	}
	defer rows.Close()

	var out []draft.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list drafts: %w", err)
	}
	return out, nil
}

// Notify stores a notification until it is drained.
func (s *Store) Notify(ctx context.Context, n notify.Notification) error {
	at := n.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (kind, draft_id, message, error, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(n.Kind), n.DraftID, n.Message, n.Err, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: insert notification: %w", err)
	}
	return nil
}

// DrainNotifications returns and deletes every stored notification in
// arrival order.
func (s *Store) DrainNotifications(ctx context.Context) ([]notify.Notification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT kind, draft_id, message, error, created_at FROM notifications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select notifications: %w", err)
	}
	var out []notify.Notification
	for rows.Next() {
		var (
			n                   notify.Notification
			kind, created       string
			draftID, errMessage sql.NullString
		)
		if err := rows.Scan(&kind, &draftID, &n.Message, &errMessage, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}
		n.Kind = notify.Kind(kind)
		n.DraftID = draftID.String
		n.Err = errMessage.String
		n.At, _ = time.Parse(timeLayout, created)
		out = append(out, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: select notifications: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return nil, fmt.Errorf("sqlite: delete notifications: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (draft.Record, error) {
	var (
		rec                          draft.Record
		status, payload, created, up string
	)
	if err := row.Scan(&rec.ID, &rec.DocumentType, &status, &payload, &created, &up); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return draft.Record{}, err
		}
		return draft.Record{}, fmt.Errorf("sqlite: scan draft: %w", err)
	}
	values, err := decodeValues(payload)
	if err != nil {
		return draft.Record{}, err
	}
	rec.Status = draft.Status(status)
	rec.Values = values
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, up)
	return rec, nil
}

func encodeValues(values model.Values) (string, error) {
	if values == nil {
		values = model.Values{}
	}
	if err := values.Check(); err != nil {
		return "", fmt.Errorf("sqlite: encode values: %w", err)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode values: %w", err)
	}
	return string(data), nil
}

func decodeValues(payload string) (model.Values, error) {
	var values model.Values
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("sqlite: decode values: %w", err)
	}
	if values == nil {
		values = model.Values{}
	}
	if err := values.Check(); err != nil {
		return nil, fmt.Errorf("sqlite: decode values: %w", err)
	}
	return values, nil
}

var (
	_ draft.Store     = (*Store)(nil)
	_ draft.Lister    = (*Store)(nil)
	_ notify.Notifier = (*Store)(nil)
)
