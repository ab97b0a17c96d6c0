package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
)

type buildOptions struct {
	strict  bool
	out     string
	workers int
	json    bool
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build <payload>",
		Short: "Build an index from a search payload and report what was loaded",
		Long: `Build an index from a documentation search payload.

Prints the build report: documents loaded, records skipped or duplicated,
and the size of the index. With --out the index is also written as a
snapshot that the search service and "docsearch search" can load.

In strict mode the first malformed or duplicate record fails the build.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := corpus.ModeLenient
			if opts.strict {
				mode = corpus.ModeStrict
			}
			idx, report, err := loadIndex(cmd.Context(), args[0], indexer.BuildOptions{Mode: mode, Workers: opts.workers})
			if err != nil {
				return err
			}
			if report == nil {
				return fmt.Errorf("%s is already a snapshot; use inspect", args[0])
			}

			var path string
			if opts.out != "" {
				name, err := segment.NewWriter(opts.out).Write(idx)
				if err != nil {
					return err
				}
				path = filepath.Join(opts.out, name)
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), struct {
					Report      *corpus.BuildReport `json:"report"`
					Fingerprint string              `json:"fingerprint"`
					Snapshot    string              `json:"snapshot,omitempty"`
				}{report, idx.Fingerprint(), path})
			}
			printReport(cmd.OutOrStdout(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "fingerprint: %s\n", idx.Fingerprint())
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot:    %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on the first malformed or duplicate record")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Directory to write the index snapshot to")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Build workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r *corpus.BuildReport) {
	fmt.Fprintf(w, "records:     %d\n", r.Records)
	fmt.Fprintf(w, "documents:   %d (%d anchor-only)\n", r.Documents, r.AnchorOnly)
	fmt.Fprintf(w, "terms:       %d\n", r.Terms)
	fmt.Fprintf(w, "postings:    %d\n", r.Postings)
	fmt.Fprintf(w, "mode:        %s\n", r.Mode)
	fmt.Fprintf(w, "took:        %dms\n", r.DurationMs)
	if r.Empty {
		fmt.Fprintln(w, "warning:     corpus is empty")
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "skipped:     #%d %q: %s\n", s.Index, s.Location, s.Reason)
	}
	for _, d := range r.Duplicates {
		fmt.Fprintf(w, "duplicate:   #%d %q (%d copies)\n", d.Index, d.Location, d.Count)
	}
}
