package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ecoai/sentinel/internal/logger"
	"github.com/ecoai/sentinel/pkg/config"
)

type globalFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Ecological resource ledger for generative-AI sessions",
		Long: "sentinel tracks the token budget of an AI assistant session and derives its water, " +
			"energy and biodiversity footprint from every exchange.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newChatCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newAdviseCmd(flags))
	root.AddCommand(newTiersCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// load reads the configuration and builds the logger, applying flag overrides.
func (f *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sentinel %s (%s)\n", version, commit)
		},
	}
}
