package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func newImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <payload>",
		Short: "Load a payload into the PostgreSQL record table",
		Long: `Replace the contents of the configured record table with the records
of a payload file, in order. Indexers configured with a postgres source
read from this table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			records, err := (&source.FileSource{Path: args[0]}).Records(cmd.Context())
			if err != nil {
				return err
			}
			db, err := postgres.New(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			table := source.NewPostgresSource(db, cfg.Source.Table)
			if err := table.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := table.Replace(cmd.Context(), records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", len(records), cfg.Source.Table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (defaults and DS_* variables otherwise)")
	return cmd
}
