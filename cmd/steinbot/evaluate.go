package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/evaluation"
)

var evaluateFlags struct {
	dataset string
	out     string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score retrieval and answers against a labelled dataset",
	Long: `Evaluate sends every dataset query through the answering pipeline,
scores the retrieved identifiers against the ground truth (precision@k,
recall@k, MRR, MAP, NDCG) and the answer against the reference (ROUGE-L),
records a trace per query and writes a JSON report.

Answering updates the persona thresholds exactly as live traffic does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := evaluation.LoadDataset(evaluateFlags.dataset)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			e, err := a.Evaluator()
			if err != nil {
				return err
			}
			report, err := e.Run(ctx, cases)
			if err != nil {
				return err
			}
			report.Dataset = evaluateFlags.dataset

			path, err := evaluation.WriteReport(report, cfg.Evaluation.ReportDir, evaluateFlags.out)
			if err != nil {
				return err
			}
			printSummary(cmd, report)
			fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s\n", path)
			return nil
		})
	},
}

func printSummary(cmd *cobra.Command, r *evaluation.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d queries, k=%d\n", r.RunID, len(r.Queries), r.K)
	for _, group := range []map[string]evaluation.Summary{r.Retrieval, r.Ranking, r.Generation} {
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %-14s mean %.3f  median %.3f\n", name, group[name].Mean, group[name].Median)
		}
	}
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateFlags.dataset, "dataset", "evaluation/datasets/dataset.json", "Dataset file")
	evaluateCmd.Flags().StringVar(&evaluateFlags.out, "out", "", "Report path (default: <report_dir>/evaluation_<run id>.json)")
}
