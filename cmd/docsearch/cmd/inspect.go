package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Print the counts and fingerprint of an index snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, h, err := segment.Read(args[0])
			if err != nil {
				return err
			}
			info := struct {
				Path        string `json:"path"`
				Version     uint32 `json:"version"`
				Documents   int    `json:"documents"`
				Terms       int    `json:"terms"`
				Postings    int    `json:"postings"`
				Fingerprint string `json:"fingerprint"`
			}{args[0], h.Version, idx.TotalDocs(), idx.NumTerms(), idx.NumPostings(), idx.Fingerprint()}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:        %s\n", info.Path)
			fmt.Fprintf(out, "version:     %d\n", info.Version)
			fmt.Fprintf(out, "documents:   %d\n", info.Documents)
			fmt.Fprintf(out, "terms:       %d\n", info.Terms)
			fmt.Fprintf(out, "postings:    %d\n", info.Postings)
			fmt.Fprintf(out, "fingerprint: %s\n", info.Fingerprint)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
