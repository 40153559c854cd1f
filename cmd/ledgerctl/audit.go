package main

import (
	"errors"
	"fmt"
	"io"

	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/storage"
	"hoa-ledger/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errBrokenChains = errors.New("one or more poll chains failed the audit")

func auditCommand(getEnv func() *env) *cobra.Command {
	var archiveBinding bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Validate every poll chain",
		Long: "Recomputes every fingerprint and link of every poll. Exits non-zero when any\n" +
			"chain is broken. With --archive, reports for binding polls are written to the\n" +
			"configured report bucket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := getEnv()
			ctx := cmd.Context()

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			var archiver services.ReportArchiver
			if archiveBinding {
				client, err := storage.NewClient(ctx, e.cfg.Storage)
				if err != nil {
					return fmt.Errorf("report archive: %w", err)
				}
				archiver = client
			}

			validator := services.NewValidatorService(
				repository.NewPollRepository(db),
				repository.NewVoteRepository(db),
				archiver,
				metrics.NewUnregistered(),
				e.log,
			)
			reports, err := validator.ValidateAll(ctx)
			if err != nil {
				return err
			}

			broken := 0
			out := cmd.OutOrStdout()
			for _, r := range reports {
				printReport(out, r)
				if !r.Valid {
					broken++
				}
				if archiveBinding && r.PollKind == poll.KindBinding {
					location, err := validator.ArchiveReport(ctx, r)
					if err != nil {
						return err
					}
					e.log.Logger.Info("archived integrity report",
						zap.String("poll_id", r.PollID.String()),
						zap.String("location", location))
				}
			}
			fmt.Fprintf(out, "%d polls audited, %d broken\n", len(reports), broken)
			if broken > 0 {
				return errBrokenChains
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&archiveBinding, "archive", false, "archive reports for binding polls")
	return cmd
}

func printReport(w io.Writer, r services.IntegrityReport) {
	state := "ok"
	if !r.Valid {
		state = "BROKEN"
	}
	fmt.Fprintf(w, "%-6s %s %-10s votes=%d %q\n", state, r.PollID, r.PollKind, r.TotalVotes, r.PollTitle)
	for _, b := range r.BrokenLinks {
		fmt.Fprintf(w, "       #%d seq=%d %s expected=%s actual=%s\n", b.Position, b.Sequence, b.Kind, b.Expected, b.Actual)
	}
}
