package main

import (
	"fmt"
	"os"

	"hoa-ledger/config"
	"hoa-ledger/pkg/database"
	"hoa-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"gorm.io/gorm"
)

const programName = "ledgerctl"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

// env is what every subcommand gets after the root pre-run.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func loadEnv() (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mode := logger.ProductionMode
	if globalFlags.debug {
		mode = logger.DevelopmentMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	// toss the undo func, the process is short lived
	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: l}, nil
}

func (e *env) openDB() (*gorm.DB, error) {
	return database.Connect(e.cfg.Database)
}

func main() {
	var current *env

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Administer the HOA vote ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			current = e
			return nil
		},
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to a YAML config file")

	getEnv := func() *env { return current }
	rootCmd.AddCommand(migrateCommand(getEnv))
	rootCmd.AddCommand(statusCommand(getEnv))
	rootCmd.AddCommand(seedCommand(getEnv))
	rootCmd.AddCommand(auditCommand(getEnv))
	rootCmd.AddCommand(tokenCommand(getEnv))
	rootCmd.AddCommand(rateLimitCommand(getEnv))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
