package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/oracle"
	"sceneforge/internal/store"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var checkOracle bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check engine database health (schema, integrity, pending ledger)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				var oracleErr error
				oracleChecked := false
				if checkOracle {
					oracleChecked = true
					oracleErr = oracle.NewClient(cfg.GetOracle()).HealthCheck(cmd.Context())
				}

				if ctx.JSONMode() {
					view := map[string]any{"database": health}
					if oracleChecked {
						view["oracleReachable"] = oracleErr == nil
						if oracleErr != nil {
							view["oracleError"] = oracleErr.Error()
						}
					}
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				if len(health.TablesPresent) > 0 {
					tables := append([]string(nil), health.TablesPresent...)
					sort.Strings(tables)
					fmt.Fprintf(out, "Tables: %s\n", strings.Join(tables, ", "))
				}
				if len(health.MissingTables) > 0 {
					missing := append([]string(nil), health.MissingTables...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing tables: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Projects: %d\n", health.ProjectCount)
				fmt.Fprintf(out, "Pending ledger reservations: %d\n", health.PendingLedger)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				if oracleChecked {
					if oracleErr != nil {
						fmt.Fprintf(out, "Oracle reachable: no (%v)\n", oracleErr)
					} else {
						fmt.Fprintln(out, "Oracle reachable: yes")
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&checkOracle, "oracle", false, "Also ping the decision oracle")

	return cmd
}
