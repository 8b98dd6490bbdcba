package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/evalrun"
	"sceneforge/internal/oracle"
	"sceneforge/internal/store"
)

func newEvalCommand(ctx *commandContext) *cobra.Command {
	var (
		modeFlag    string
		casesFlag   string
		limitFlag   int
		focusFlag   string
		outFlag     string
		policyFlag  string
		workersFlag int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run a batch evaluation of the resolver and oracle",
		Long: "Replays fixture cases (or recent applied requests sampled from the ledger) " +
			"through media resolution and the decision oracle without mutating any project, " +
			"then reports how results compare against expectations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				runner := evalrun.NewRunner(st, oracle.NewClient(cfg.GetOracle()), cfg, nil)
				summary, results, err := runner.Run(cmd.Context(), evalrun.Options{
					Mode:           evalrun.Mode(modeFlag),
					FixturePath:    casesFlag,
					Limit:          limitFlag,
					FocusID:        focusFlag,
					OutPath:        outFlag,
					SkipPlanPolicy: policyFlag,
					Workers:        workersFlag,
				})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"summary": summary, "results": results})
				}
				printEvalSummary(cmd, summary, outFlag)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", string(evalrun.ModeCases), "Case source: cases or prod")
	cmd.Flags().StringVar(&casesFlag, "cases", "", "Fixture file path (cases mode)")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum cases to evaluate (0 = no cap)")
	cmd.Flags().StringVar(&focusFlag, "focus", "", "Evaluate only the case with this id")
	cmd.Flags().StringVar(&outFlag, "out", "", "Write per-case results as NDJSON to this path")
	cmd.Flags().StringVar(&policyFlag, "skip-plan-policy", "", "Override every case's cross-project policy: fail, warn, or ignore")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent case workers (0 = config default)")

	return cmd
}

func printEvalSummary(cmd *cobra.Command, summary *evalrun.Summary, outPath string) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"Operation", fmt.Sprintf("%d", summary.OperationMatches), fmt.Sprintf("%d", summary.OperationMismatches)},
		{"Media set", fmt.Sprintf("%d", summary.MediaMatches), fmt.Sprintf("%d", summary.MediaMismatches)},
		{"Image action", fmt.Sprintf("%d", summary.ActionMatches), fmt.Sprintf("%d", summary.ActionMismatches)},
	}
	fmt.Fprintf(out, "Mode: %s\n", summary.Mode)
	fmt.Fprintf(out, "Cases: %d (%d failed, %d skipped by policy) in %s\n",
		summary.Total, summary.Failed, summary.SkippedCrossProject, summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(out, renderTable([]string{"Check", "Matches", "Mismatches"}, rows, 1, 2))

	if !summary.CrossProject.Empty() {
		fmt.Fprintf(out, "Cross-project skips: %d request(s), %d plan hit(s)\n",
			summary.CrossProject.SkippedRequestCount, summary.CrossProject.SkippedPlanHits)
		for origin, count := range summary.CrossProject.PerProjectBreakdown {
			fmt.Fprintf(out, "  %s: %d\n", origin, count)
		}
	}
	if outPath != "" {
		fmt.Fprintf(out, "Per-case results written to %s\n", outPath)
	}
}
