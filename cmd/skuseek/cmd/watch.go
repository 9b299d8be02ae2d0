package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/output"
	"github.com/skuseek/skuseek/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the catalog snapshot and reindex on change",
		Long: `Index the catalog snapshot, then keep watching it. Every change is
debounced and triggers a full reindex, so search always serves the
latest snapshot. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, catalogPath)
		},
	}

	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "Path to the catalog JSON snapshot")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, catalogPath string) error {
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

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	reindex := func(ctx context.Context) {
		products, skipped, err := catalog.LoadSnapshot(cfg.Paths.Catalog)
		if err != nil {
			out.Errorf("reload failed: %v", err)
			return
		}
		if err := engine.Rebuild(ctx, products); err != nil {
			out.Errorf("reindex failed: %v", err)
			return
		}
		if err := engine.Save(); err != nil {
			out.Errorf("index save failed: %v", err)
			return
		}
		out.Successf("Reindexed %d products (%d skipped)", len(products), len(skipped))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Serve the current snapshot before waiting for changes
	reindex(ctx)

	w, err := watcher.New(cfg.Paths.Catalog, watcher.Options{Debounce: cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %s", cfg.Paths.Catalog)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case watcher.KindReload:
				reindex(ctx)
			case watcher.KindRemoved:
				out.Warning("catalog snapshot removed, keeping last index")
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}
