package main

import (
	"fmt"
	"time"

	"hoa-ledger/internal/services"

	"github.com/spf13/cobra"
)

func tokenCommand(getEnv func() *env) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "token <voter-id>",
		Short: "Sign a bearer token for a voter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := services.RoleMember
			if admin {
				role = services.RoleAdmin
			}
			tok, expiresAt, err := services.NewAuthService(getEnv().cfg.Auth).IssueToken(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "role=%s expires=%s\n", role, expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	return cmd
}
