package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the idempotency ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))

	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List recent ledger records for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				records, err := st.ListLedgerRecords(cmd.Context(), strings.TrimSpace(args[0]), limitFlag)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					views := make([]map[string]any, 0, len(records))
					for _, record := range records {
						views = append(views, ledgerView(record))
					}
					return writeJSON(cmd, views)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No ledger records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					finalized := "-"
					if record.FinalizedAt != nil {
						finalized = record.FinalizedAt.Format(time.RFC3339)
					}
					rows = append(rows, []string{
						record.IdempotencyKey,
						displayLabel(string(record.Status)),
						displayLabel(string(record.OperationType)),
						record.CreatedAt.Format(time.RFC3339),
						finalized,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Key", "Status", "Operation", "Created", "Finalized"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum records to show")

	return cmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id> <idempotency-key>",
		Short: "Show one ledger record with payload and result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				projectID := strings.TrimSpace(args[0])
				key := strings.TrimSpace(args[1])
				record, err := st.GetLedgerRecord(cmd.Context(), projectID, key)
				if err != nil {
					return err
				}
				if record == nil {
					return services.Wrap(services.ErrNotFound, "cli", "ledger show",
						fmt.Sprintf("no ledger record for key %q in project %q", key, projectID), nil)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, ledgerView(record))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Key: %s\n", record.IdempotencyKey)
				fmt.Fprintf(out, "Project: %s\n", record.ProjectID)
				fmt.Fprintf(out, "Status: %s\n", displayLabel(string(record.Status)))
				if record.OperationType != "" {
					fmt.Fprintf(out, "Operation: %s\n", displayLabel(string(record.OperationType)))
				}
				fmt.Fprintf(out, "Created: %s\n", record.CreatedAt.Format(time.RFC3339))
				if record.FinalizedAt != nil {
					fmt.Fprintf(out, "Finalized: %s\n", record.FinalizedAt.Format(time.RFC3339))
				}
				if record.PayloadJSON != "" {
					fmt.Fprintf(out, "Payload:\n%s\n", record.PayloadJSON)
				}
				if record.ResultJSON != "" {
					fmt.Fprintf(out, "Result:\n%s\n", record.ResultJSON)
				}
				return nil
			})
		},
	}
}

func ledgerView(record *store.LedgerRecord) map[string]any {
	view := map[string]any{
		"projectId":      record.ProjectID,
		"idempotencyKey": record.IdempotencyKey,
		"status":         record.Status,
		"operationType":  record.OperationType,
		"payload":        record.PayloadJSON,
		"result":         record.ResultJSON,
		"createdAt":      record.CreatedAt,
	}
	if record.FinalizedAt != nil {
		view["finalizedAt"] = *record.FinalizedAt
	}
	return view
}
