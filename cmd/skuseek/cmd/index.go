package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/output"
)

func newIndexCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build indexes from the catalog snapshot",
		Long: `Load the catalog JSON snapshot and rebuild the keyword index, the
vector store, and the catalog mirror from it.

Examples:
  skuseek index --catalog ./catalog.json
  skuseek index                              (uses paths.catalog from config)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, catalogPath)
		},
	}

	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "Path to the catalog JSON snapshot")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, catalogPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.Paths.Catalog = catalogPath
	}
	if cfg.Paths.Catalog == "" {
		return fmt.Errorf("no catalog snapshot: pass --catalog or set paths.catalog")
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📦", "Loading catalog from %s", cfg.Paths.Catalog)

	products, skipped, err := catalog.LoadSnapshot(cfg.Paths.Catalog)
	if err != nil {
		return err
	}
	for _, skipErr := range skipped {
		out.Warningf("skipped: %v", skipErr)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Rebuild(ctx, products); err != nil {
		return err
	}
	if err := engine.Save(); err != nil {
		return err
	}

	out.Successf("Indexed %d products (%d skipped)", len(products), len(skipped))
	return nil
}
