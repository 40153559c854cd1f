package main

import (
	"fmt"
	"text/tabwriter"

	"hoa-ledger/pkg/database"

	"github.com/spf13/cobra"
)

func statusCommand(getEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the database connection and show row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := getEnv()
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx := cmd.Context()
			if err := database.HealthCheck(ctx, db); err != nil {
				return fmt.Errorf("database unhealthy: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "driver\t%s\n", e.cfg.Database.Driver)
			for _, table := range database.TableNames() {
				n, err := database.TableCount(ctx, db, table)
				if err != nil {
					return fmt.Errorf("count %s: %w", table, err)
				}
				fmt.Fprintf(w, "%s\t%d\n", table, n)
			}
			return w.Flush()
		},
	}
}
