package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/core/ingest"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the vector index and uniqueness constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Builder.CreateIndexes(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexes ready for %s (%d dimensions)\n", a.Profile.Schema.Name, a.Builder.Dimensions)
			return nil
		})
	},
}

var relateCmd = &cobra.Command{
	Use:   "relate",
	Short: "Materialize TOPIC_RELATED, SHARES_ENTITIES and SIMILAR_TO edges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Builder.MaterializeRelationships(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		})
	},
}

var ingestFlags struct {
	file    string
	index   bool
	relate  bool
	workers int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents from a JSON Lines file",
	Long: `Ingest reads one document per line (JSON Lines), extracts topics and
entities with the model, embeds the content and writes everything into the
graph. Documents whose content was ingested before are refreshed, not
duplicated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := ingest.ReadFile(ingestFlags.file)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if ingestFlags.workers > 0 {
				a.Builder.Concurrency = ingestFlags.workers
			}
			if ingestFlags.index {
				if err := a.Builder.CreateIndexes(ctx); err != nil {
					return err
				}
			}

			report, err := a.Builder.IngestAll(ctx, docs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %d, already present %d, failed %d of %d documents\n",
				report.Ingested, report.Existing, report.Failed, len(docs))
			for _, e := range report.Errors {
				fmt.Fprintf(out, "  - %v\n", e)
			}

			if ingestFlags.relate {
				stats, err := a.Builder.MaterializeRelationships(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			}
			return nil
		})
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFlags.file, "file", "f", "", "Input file (.jsonl)")
	ingestCmd.Flags().BoolVar(&ingestFlags.index, "index", false, "Create indexes before ingesting")
	ingestCmd.Flags().BoolVar(&ingestFlags.relate, "relate", false, "Materialize relationships after ingesting")
	ingestCmd.Flags().IntVar(&ingestFlags.workers, "workers", 0, "Concurrent documents (default from config)")
	_ = ingestCmd.MarkFlagRequired("file")
}
