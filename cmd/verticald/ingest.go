package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/verticald/internal/engine"
	"github.com/fyrsmithlabs/verticald/internal/extract"
	"github.com/fyrsmithlabs/verticald/internal/watcher"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Classify, chunk and index a document",
		Long: `Ingest reads a plain text or PDF document, assigns its pages to verticals
and stores the chunks in each vertical's index. Use - to read text from stdin.

Pages of a text document are separated by the configured delimiter:

  --- PAGE 1 ---
  ...

Examples:
  verticald ingest annual-report-2024.pdf --document-id ar2024
  cat notes.txt | verticald ingest -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				text, err := readDocument(cmd, args[0], a.cfg.Segmenter.Delimiter)
				if err != nil {
					return err
				}
				if documentID == "" && args[0] != "-" {
					documentID = watcher.DocumentID(args[0])
				}

				report, err := a.engine.Ingest(ctx, text, engine.IngestOptions{DocumentID: documentID})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.json {
					if err := writeJSON(out, report); err != nil {
						return err
					}
				} else {
					renderIngest(out, report)
				}
				if report.State == engine.StateFailed {
					return fmt.Errorf("ingest failed: %s", report.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document id scoping chunk ids (default derived from the file name)")
	return cmd
}

// readDocument loads a document from path, or from stdin for "-".
func readDocument(cmd *cobra.Command, path, delimiter string) (string, error) {
	if path == "-" {
		return extract.ReadText(cmd.InOrStdin())
	}
	return extract.File(path, delimiter)
}
