package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meghashyamc/caseindex/api"
	"github.com/meghashyamc/caseindex/app"
	"github.com/meghashyamc/caseindex/config"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/spf13/cobra"
)

var (
	env           string
	rebuildUserID int64

	rootCmd = &cobra.Command{
		Use:           "caseindex",
		Short:         "Search index service for cases, evidence, conversations and notes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return api.Run(cmd.Context(), cfg, log)
		},
	}

	rebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the search index for every user, or one user with --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if rebuildUserID > 0 {
					report, err := a.Index.RebuildIndexForUser(ctx, rebuildUserID)
					if err != nil {
						return err
					}
					return printJSON(report)
				}
				report, err := a.Index.RebuildIndex(ctx)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}

	optimizeCmd = &cobra.Command{
		Use:   "optimize",
		Short: "Merge index segments and check index health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Index.OptimizeIndex(ctx)
			})
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print document counts for the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Index.GetIndexStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "config environment (defaults to $ENV, then local)")
	rebuildCmd.Flags().Int64Var(&rebuildUserID, "user", 0, "only rebuild entries owned by this user id")

	rootCmd.AddCommand(serveCmd, rebuildCmd, optimizeCmd, statsCmd)
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.GetLogLevel()), nil
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
