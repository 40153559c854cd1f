package main

import (
	"fmt"

	"hoa-ledger/pkg/database"

	"github.com/spf13/cobra"
)

func seedCommand(getEnv func() *env) *cobra.Command {
	var createdBy string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo polls (existing titles are skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getEnv().openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			cfg := database.DefaultSeedConfig()
			cfg.CreatedBy = createdBy
			res, err := database.Seed(cmd.Context(), db, cfg)
			if err != nil {
				return err
			}
			for _, p := range res.Polls {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Kind, p.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&createdBy, "created-by", "seed", "creator recorded on seeded polls")
	return cmd
}
