// Package buildlog keeps a durable history of index builds in PostgreSQL so
// operators can see which corpus produced which snapshot, and what was
// rejected along the way.
package buildlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Entry is one recorded build.
type Entry struct {
	ID          int64               `json:"id"`
	Generation  uint64              `json:"generation"`
	Fingerprint string              `json:"fingerprint"`
	Source      string              `json:"source"`
	Snapshot    string              `json:"snapshot,omitempty"`
	Report      *corpus.BuildReport `json:"report"`
	BuiltAt     time.Time           `json:"built_at"`
}

const schema = `CREATE TABLE IF NOT EXISTS index_builds (
	id          BIGSERIAL PRIMARY KEY,
	generation  BIGINT NOT NULL,
	fingerprint TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	snapshot    TEXT NOT NULL DEFAULT '',
	report      JSONB NOT NULL,
	built_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store persists build entries in the index_builds table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "buildlog"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, schema)
}

// Record inserts e and fills in its ID and BuiltAt.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e.Report)
	if err != nil {
		return fmt.Errorf("marshaling build report: %w", err)
	}
	if e.BuiltAt.IsZero() {
		e.BuiltAt = time.Now().UTC()
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO index_builds (generation, fingerprint, source, snapshot, report, built_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			int64(e.Generation), e.Fingerprint, e.Source, e.Snapshot, data, e.BuiltAt,
		).Scan(&e.ID)
	})
	if err != nil {
		return fmt.Errorf("recording build: %w", err)
	}

	s.logger.Info("build recorded",
		"id", e.ID,
		"generation", e.Generation,
		"fingerprint", e.Fingerprint,
	)
	return nil
}

// Latest returns the most recent entry, or nil, nil when there is none.
func (s *Store) Latest(ctx context.Context) (*Entry, error) {
	entries, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, generation, fingerprint, source, snapshot, report, built_at
		 FROM index_builds ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e    Entry
			gen  int64
			data []byte
		)
		if err := rows.Scan(&e.ID, &gen, &e.Fingerprint, &e.Source, &e.Snapshot, &data, &e.BuiltAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		e.Generation = uint64(gen)
		e.Report = &corpus.BuildReport{}
		if err := json.Unmarshal(data, e.Report); err != nil {
			s.logger.Warn("skipping corrupt build report", "id", e.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating build rows: %w", err)
	}
	return entries, nil
}
