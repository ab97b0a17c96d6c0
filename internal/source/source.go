// Package source fetches the raw documentation record sequence from where
// the generator left it: a payload file or a database table.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Source yields the complete, ordered record sequence each time it is asked.
type Source interface {
	Records(ctx context.Context) ([]corpus.Record, error)
	String() string
}

// New builds the source described by cfg. db is required only for
// postgres sources.
func New(cfg config.SourceConfig, db *postgres.Client) (Source, error) {
	switch cfg.Kind {
	case "file":
		return &FileSource{Path: cfg.Path}, nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgresSource(db, cfg.Table), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// FileSource reads a generator payload file.
type FileSource struct {
	Path string
}

func (s *FileSource) Records(ctx context.Context) ([]corpus.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	defer f.Close()
	records, err := corpus.ParseDocumenter(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return records, nil
}

func (s *FileSource) String() string {
	return "file:" + s.Path
}
