// Package journal records every command pagemap executes in SQLite, so a
// session's actions and their outcomes can be replayed and audited.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domsight/dbopen"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Schema creates the commands table.
const Schema = `
CREATE TABLE IF NOT EXISTS commands (
	id          TEXT PRIMARY KEY,
	page_id     TEXT NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	locator     TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	value       TEXT NOT NULL DEFAULT '',
	ok          INTEGER NOT NULL,
	not_found   INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commands_page ON commands(page_id, created_at);
`

// Entry is one journaled command.
type Entry struct {
	ID         string          `json:"id"`
	PageID     string          `json:"page_id"`
	SnapshotID string          `json:"snapshot_id,omitempty"` // latest snapshot when the command ran
	Action     snapshot.Action `json:"action"`
	Locator    string          `json:"locator,omitempty"`
	URL        string          `json:"url,omitempty"`
	Value      string          `json:"value,omitempty"`
	OK         bool            `json:"ok"`
	NotFound   bool            `json:"not_found,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  int64           `json:"created_at"` // epoch milliseconds
}

// FromOutcome builds the entry for a command and its outcome.
func FromOutcome(cmd snapshot.Command, out *snapshot.Outcome, snapshotID string) Entry {
	return Entry{
		ID:         out.ID,
		PageID:     out.PageID,
		SnapshotID: snapshotID,
		Action:     cmd.Action,
		Locator:    cmd.Locator,
		URL:        cmd.URL,
		Value:      cmd.Value,
		OK:         out.OK,
		NotFound:   out.NotFound,
		Error:      out.Error,
		CreatedAt:  out.Timestamp,
	}
}

// Journal appends and reads command entries.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// New wraps an open database and creates the schema.
func New(db *sql.DB, opts ...Option) (*Journal, error) {
	j := &Journal{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(j)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return j, nil
}

// Open opens (or creates) the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return New(db, opts...)
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends e. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, j.db, `
		INSERT INTO commands (id, page_id, snapshot_id, action, locator, url, value,
		                      ok, not_found, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PageID, e.SnapshotID, string(e.Action), e.Locator, e.URL, e.Value,
		boolInt(e.OK), boolInt(e.NotFound), e.Error, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", e.ID, err)
	}
	j.logger.Debug("journal: recorded", "id", e.ID, "page_id", e.PageID, "action", e.Action, "ok", e.OK)
	return nil
}

// Recent returns up to limit entries for pageID, newest first. An empty
// pageID returns entries for every page.
func (j *Journal) Recent(ctx context.Context, pageID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, page_id, snapshot_id, action, locator, url, value,
		       ok, not_found, error, created_at
		FROM commands
		WHERE ? = '' OR page_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, pageID, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		var ok, notFound int
		if err := rows.Scan(&e.ID, &e.PageID, &e.SnapshotID, &action, &e.Locator, &e.URL, &e.Value,
			&ok, &notFound, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Action = snapshot.Action(action)
		e.OK = ok != 0
		e.NotFound = notFound != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
