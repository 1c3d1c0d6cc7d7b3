package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

type queryResult struct {
	Query      string               `json:"query"`
	Authorized []string             `json:"authorized"`
	Context    string               `json:"context"`
	Chunks     []corpus.ScoredChunk `json:"chunks,omitempty"`
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		verticals  []string
		showChunks bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Build context for a question from authorized verticals",
		Long: `Query embeds the question, searches only the verticals passed with
--vertical and prints the merged context, one line per chunk:

  [RETAIL] page 4: Reliance Retail opened 1,840 new stores...

When nothing relevant is found the output names the searched verticals.

Examples:
  verticald query "store count growth" --vertical retail
  verticald query "ARPU trend" --vertical jio --vertical media --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()

				var result queryResult
				result.Query = query
				result.Authorized = verticals
				if result.Authorized == nil {
					result.Authorized = []string{}
				}

				text, err := a.engine.Query(ctx, query, verticals)
				if err != nil {
					return err
				}
				result.Context = text

				if showChunks {
					chunks, err := a.engine.Retrieve(ctx, query, verticals)
					if err != nil {
						return err
					}
					result.Chunks = chunks
				}

				if opts.json {
					return writeJSON(out, result)
				}
				fmt.Fprintln(out, result.Context)
				if showChunks {
					t := newTable("VERTICAL", "PAGE", "SCORE")
					for _, c := range result.Chunks {
						t.Row(c.Vertical, fmt.Sprint(c.PageNumber), fmt.Sprintf("%.3f", c.Score))
					}
					fmt.Fprintln(out, t.Render())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&verticals, "vertical", nil, "vertical the caller may read (repeatable)")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "also list the retrieved chunks and scores")
	return cmd
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file|->",
		Short: "Show how a document would be segmented without indexing it",
		Long: `Preview runs page splitting and classification only. Nothing is embedded
or stored.

Examples:
  verticald preview annual-report-2024.pdf
  verticald preview - --json < notes.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				text, err := readDocument(cmd, args[0], a.cfg.Segmenter.Delimiter)
				if err != nil {
					return err
				}
				report := a.engine.Preview(ctx, text)
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				renderPreview(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}
