// Package cmd provides the commands of the docsearch CLI, which builds,
// queries and inspects documentation indexes without running the services.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Build and query documentation search indexes",
		Long: `docsearch indexes the search payload emitted by a documentation
generator and answers keyword, phrase and prefix queries against it.

Examples:
  docsearch build search_index.js --out data/index
  docsearch search search_index.js "rollout simulator"
  docsearch inspect data/index/idx_3f2a9c0d11b84e7a.spdx`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel, logFormat))
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadIndex opens path as a snapshot when it has the snapshot extension and
// builds it from a payload file otherwise.
func loadIndex(ctx context.Context, path string, opts indexer.BuildOptions) (*index.Index, *corpus.BuildReport, error) {
	if filepath.Ext(path) == segment.Extension {
		idx, _, err := segment.Read(path)
		return idx, nil, err
	}
	records, err := (&source.FileSource{Path: path}).Records(ctx)
	if err != nil {
		return nil, nil, err
	}
	return indexer.Build(ctx, records, opts)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
