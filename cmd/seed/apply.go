package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/config"
	"lawwarden.io/warden/internal/infrastructure"
	"lawwarden.io/warden/internal/jurisdiction"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/world"
)

// worldStore is what applying a world needs from persistence.
type worldStore interface {
	jurisdiction.Store
	route.Store
}

func newApplyCmd() *cobra.Command {
	var (
		file     string
		hooksDir string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a world file's authorities, laws, and routes",
		Long: `Apply validates a YAML world file and registers everything it declares.
With --dry-run the file is applied to an in-memory store and nothing is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			if file == "" {
				file = cfg.World.File
			}
			if hooksDir == "" {
				hooksDir = cfg.World.HooksDir
			}
			if file == "" {
				return fmt.Errorf("no world file: pass --file or set world.file")
			}

			ctx := cmd.Context()
			if dryRun {
				_, err := applyWorld(ctx, file, hooksDir, repository.NewMemoryStore(), cmd.OutOrStdout())
				return err
			}

			db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("init database: %w", err)
			}
			defer db.Close()
			if cfg.Database.AutoMigrate {
				if err := db.AutoMigrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			if err := db.VerifySchema(ctx); err != nil {
				return err
			}
			_, err = applyWorld(ctx, file, hooksDir, repository.NewStore(db.Pool), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "world file (defaults to world.file)")
	cmd.Flags().StringVar(&hooksDir, "hooks", "", "directory of *.lua start-trigger programs (defaults to world.hooks_dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate against an in-memory store without writing")
	return cmd
}

// applyWorld loads the stored state, then applies the world file on top of it.
func applyWorld(ctx context.Context, path, hooksDir string, store worldStore, out io.Writer) (world.Summary, error) {
	f, err := world.Load(path)
	if err != nil {
		return world.Summary{}, err
	}
	graph, err := f.BuildMap()
	if err != nil {
		return world.Summary{}, fmt.Errorf("build map: %w", err)
	}

	hooks := script.NewEvaluator()
	if err := f.RegisterHooks(hooks); err != nil {
		return world.Summary{}, err
	}
	if hooksDir != "" {
		if _, err := hooks.LoadDir(hooksDir); err != nil {
			return world.Summary{}, fmt.Errorf("load hooks: %w", err)
		}
	}

	registry := jurisdiction.NewRegistry(graph, store, nil)
	if err := registry.Load(ctx); err != nil {
		return world.Summary{}, fmt.Errorf("load authorities: %w", err)
	}
	catalog := route.NewCatalog(graph, registry, hooks, store, nil)
	if err := catalog.Load(ctx); err != nil {
		return world.Summary{}, fmt.Errorf("load routes: %w", err)
	}

	sum, err := f.Apply(ctx, registry, catalog)
	if err != nil {
		return sum, err
	}
	logger.Info("World applied",
		zap.String("file", path),
		zap.Int("authorities", sum.Authorities),
		zap.Int("laws", sum.Laws),
		zap.Int("routes", sum.Routes),
		zap.Int("skipped", sum.Skipped),
	)
	fmt.Fprintf(out, "applied %s: %d authorities, %d laws, %d routes (%d skipped)\n",
		path, sum.Authorities, sum.Laws, sum.Routes, sum.Skipped)
	return sum, nil
}
