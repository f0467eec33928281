package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"acrscan/internal/probecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the probe cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many window replies are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProbeCache(ctx, func(store *probecache.Store, dir string) error {
				count, err := store.Count()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cache:   %s\n", dir)
				fmt.Fprintf(out, "Entries: %d\n", count)
				return nil
			})
		},
	}
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Drop every cached window reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProbeCache(ctx, func(store *probecache.Store, dir string) error {
				if err := store.Purge(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", dir)
				return nil
			})
		},
	}
}

func withProbeCache(ctx *commandContext, fn func(*probecache.Store, string) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	dir := cfg.ProbeCacheDir()
	store, err := probecache.Open(dir, logger)
	if err != nil {
		return fmt.Errorf("open probe cache (is a scan running?): %w", err)
	}
	defer store.Close()
	return fn(store, dir)
}
