package main

import (
	"errors"
	"fmt"

	ledgerredis "hoa-ledger/internal/redis"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func rateLimitCommand(getEnv func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage receipt lookup and vote rate limits",
	}
	cmd.AddCommand(rateLimitResetCommand(getEnv))
	return cmd
}

func rateLimitResetCommand(getEnv func() *env) *cobra.Command {
	var voter, ip string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the current window for a voter or a client address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (voter == "") == (ip == "") {
				return errors.New("exactly one of --voter or --ip is required")
			}
			e := getEnv()
			rdb := ledgerredis.NewClient(e.cfg.Redis)
			defer rdb.Close()

			limiter := ledgerredis.NewRateLimiter(rdb, ledgerredis.RateLimitConfig{
				ReceiptLimit:  e.cfg.Ledger.ReceiptRateLimit,
				ReceiptWindow: e.cfg.Ledger.ReceiptRateWindow,
				VoteLimit:     e.cfg.Ledger.VoteRateLimit,
				VoteWindow:    e.cfg.Ledger.VoteRateWindow,
			})

			var (
				subject string
				cleared bool
				err     error
			)
			if voter != "" {
				subject = "voter " + voter
				cleared, err = limiter.ResetVoter(cmd.Context(), voter)
			} else {
				subject = "address " + ip
				cleared, err = limiter.ResetAddress(cmd.Context(), ip)
			}
			if err != nil {
				return err
			}
			e.log.Logger.Info("Rate limit reset", zap.String("subject", subject), zap.Bool("cleared", cleared))
			if cleared {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared rate limit for %s\n", subject)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no active window for %s\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&voter, "voter", "", "voter id whose vote window to clear")
	cmd.Flags().StringVar(&ip, "ip", "", "client address whose receipt and anonymous vote windows to clear")
	return cmd
}
