package cmd

import (
	"github.com/spf13/cobra"

	"github.com/skuseek/skuseek/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and catalog status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			engine, err := openEngine(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("📂", "data dir: %s", cfg.Paths.DataDir)
			out.Statusf("", "keyword backend: %s, embeddings: %s (%s)",
				cfg.Keyword.Backend, cfg.Embeddings.Provider, cfg.Embeddings.Model)
			out.Newline()
			out.Stats(stats)
			return nil
		},
	}
}
