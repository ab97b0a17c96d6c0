package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
)

type searchOptions struct {
	limit int
	width int
	json  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <payload|snapshot> <query>",
		Short: "Search a payload or snapshot",
		Long: `Search a documentation payload (built in memory) or an index snapshot.

Words must all match; if nothing matches every word, documents matching any
of them are returned instead. Quote words to match them as a phrase, and end
a word with * to match it as a prefix.

Examples:
  docsearch search search_index.js rollout simulator
  docsearch search data/index/idx_3f2a9c0d11b84e7a.spdx '"history recorder"'
  docsearch search search_index.js 'sim*' --limit 5 --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := loadIndex(cmd.Context(), args[0], indexer.BuildOptions{})
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")
			result := executor.Run(idx, parser.Parse(query), opts.limit, opts.width)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResults(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results (0 = all)")
	cmd.Flags().IntVar(&opts.width, "width", snippet.DefaultWidth, "Snippet width in tokens")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	return cmd
}

func printResults(w io.Writer, r *executor.SearchResult) {
	if len(r.Results) == 0 {
		fmt.Fprintf(w, "no results for %q\n", r.Query)
		return
	}
	note := ""
	if r.Fallback {
		note = " (no document matched every word; showing partial matches)"
	}
	fmt.Fprintf(w, "%d of %d results for %q%s\n\n", len(r.Results), r.TotalHits, r.Query, note)
	for i, res := range r.Results {
		fmt.Fprintf(w, "%2d. %s [%s] %.3f\n", i+1, res.Title, res.Category, res.Score)
		fmt.Fprintf(w, "    %s\n", res.Location)
		if text := highlight(res.Snippet); text != "" {
			fmt.Fprintf(w, "    %s\n", text)
		}
	}
}

// highlight renders the snippet with matched tokens wrapped in asterisks.
func highlight(s snippet.Snippet) string {
	var b strings.Builder
	last := 0
	for _, h := range s.Highlights {
		if h.Start < last || h.End > len(s.Text) {
			continue
		}
		b.WriteString(s.Text[last:h.Start])
		b.WriteString("*")
		b.WriteString(s.Text[h.Start:h.End])
		b.WriteString("*")
		last = h.End
	}
	b.WriteString(s.Text[last:])
	return strings.Join(strings.Fields(b.String()), " ")
}
