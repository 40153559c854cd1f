package main

import (
	"fmt"

	"hoa-ledger/pkg/database"

	"github.com/spf13/cobra"
)

func migrateCommand(getEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := getEnv()
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables on %s\n", len(database.TableNames()), e.cfg.Database.Driver)
			return nil
		},
	}
}
