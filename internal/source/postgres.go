package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// PostgresSource reads records from a table, in position order.
//
// The table is created by EnsureSchema:
//
//	CREATE TABLE <table> (
//	    position INTEGER PRIMARY KEY,
//	    location TEXT NOT NULL,
//	    page     TEXT NOT NULL DEFAULT '',
//	    title    TEXT NOT NULL DEFAULT '',
//	    category TEXT NOT NULL DEFAULT '',
//	    text     TEXT NOT NULL DEFAULT ''
//	);
type PostgresSource struct {
	db    *postgres.Client
	table string
}

func NewPostgresSource(db *postgres.Client, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		position INTEGER PRIMARY KEY,
		location TEXT NOT NULL,
		page     TEXT NOT NULL DEFAULT '',
		title    TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		text     TEXT NOT NULL DEFAULT ''
	)`, postgres.QuoteIdentifier(s.table)))
}

func (s *PostgresSource) Records(ctx context.Context) ([]corpus.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT location, page, title, category, text FROM %s ORDER BY position`,
		postgres.QuoteIdentifier(s.table),
	))
	if postgres.IsUndefinedTable(err) {
		return nil, fmt.Errorf("corpus table %s: %w", s.table, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := make([]corpus.Record, 0)
	for rows.Next() {
		var r corpus.Record
		if err := rows.Scan(&r.Location, &r.Page, &r.Title, &r.Category, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}
	return records, nil
}

// Replace swaps the table contents for records in one transaction, keeping
// their order.
func (s *PostgresSource) Replace(ctx context.Context, records []corpus.Record) error {
	table := postgres.QuoteIdentifier(s.table)
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (position, location, page, title, category, text) VALUES ($1, $2, $3, $4, $5, $6)`,
			table,
		))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, i, r.Location, r.Page, r.Title, r.Category, r.Text); err != nil {
				return fmt.Errorf("inserting record %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *PostgresSource) String() string {
	return "postgres:" + s.table
}
