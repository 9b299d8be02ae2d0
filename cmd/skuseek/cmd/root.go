// Package cmd provides the CLI commands for skuseek.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skuseek/skuseek/internal/config"
	"github.com/skuseek/skuseek/internal/logging"
	"github.com/skuseek/skuseek/pkg/version"
)

var (
	debugMode      bool
	dataDirFlag    string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the skuseek CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skuseek",
		Short: "Hybrid product search over a catalog snapshot",
		Long: `skuseek indexes a product catalog snapshot and serves hybrid search:
BM25 keyword retrieval and vector similarity fused with Reciprocal
Rank Fusion.

Point it at a catalog JSON snapshot with 'skuseek index', then query
with 'skuseek search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("skuseek version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to ~/.skuseek/logs/")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"Override the data directory for indexes and catalog mirror")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig loads configuration with CLI flag overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.Paths.DataDir = dataDirFlag
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "❌ %v\n", err)
		return err
	}
	return nil
}
