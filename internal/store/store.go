// Package store persists annotations (an anchor plus an opaque payload) per
// article in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/position"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// ErrNotFound is returned when an annotation does not exist.
var ErrNotFound = errors.New("annotation not found")

// Annotation is a persisted anchor with the host's payload.
type Annotation struct {
	ID        string          `json:"id"`
	Anchor    anchor.Anchor   `json:"anchor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is a SQLite-backed annotation store.
type Store struct {
	db *sql.DB
}

var migrations = []string{`
CREATE TABLE IF NOT EXISTS annotations (
	article_id     TEXT    NOT NULL,
	id             TEXT    NOT NULL,
	sentence_index INTEGER NOT NULL,
	start_token    TEXT    NOT NULL,
	end_token      TEXT    NOT NULL,
	payload        TEXT,
	created_at     INTEGER NOT NULL,
	PRIMARY KEY (article_id, id)
)`,
	`CREATE INDEX IF NOT EXISTS annotations_sentence ON annotations (article_id, sentence_index)`,
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps :memory: databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// List returns the annotations of an article ordered by sentence, then
// creation time.
func (s *Store) List(ctx context.Context, articleID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sentence_index, start_token, end_token, payload, created_at
		FROM annotations
		WHERE article_id = ?
		ORDER BY sentence_index, created_at, id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []Annotation
	for rows.Next() {
		var (
			a          Annotation
			start, end string
			payload    sql.NullString
			created    int64
		)
		if err := rows.Scan(&a.ID, &a.Anchor.SentenceIndex, &start, &end, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Anchor.Start = position.Token(start)
		a.Anchor.End = position.Token(end)
		if payload.Valid && payload.String != "" {
			a.Payload = json.RawMessage(payload.String)
		}
		a.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Put inserts or replaces an annotation. A missing ID or creation time is
// filled in; the stored annotation is returned.
func (s *Store) Put(ctx context.Context, articleID string, a Annotation) (Annotation, error) {
	if err := a.Anchor.Validate(); err != nil {
		return Annotation{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var payload any
	if len(a.Payload) > 0 {
		if !json.Valid(a.Payload) {
			return Annotation{}, fmt.Errorf("payload is not valid JSON")
		}
		payload = string(a.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (article_id, id, sentence_index, start_token, end_token, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (article_id, id) DO UPDATE SET
			sentence_index = excluded.sentence_index,
			start_token    = excluded.start_token,
			end_token      = excluded.end_token,
			payload        = excluded.payload`,
		articleID, a.ID, a.Anchor.SentenceIndex, string(a.Anchor.Start), string(a.Anchor.End),
		payload, a.CreatedAt.UnixMilli())
	if err != nil {
		return Annotation{}, fmt.Errorf("put annotation %s: %w", a.ID, err)
	}
	return a, nil
}

// Delete removes an annotation. ErrNotFound is returned when there was
// nothing to delete.
func (s *Store) Delete(ctx context.Context, articleID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE article_id = ? AND id = ?`, articleID, id)
	if err != nil {
		return fmt.Errorf("delete annotation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
