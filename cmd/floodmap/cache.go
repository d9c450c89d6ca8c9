package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/cache"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the envelope cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show the cached envelope's size and age",
			RunE:  runCacheInfo,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the cached envelope",
			RunE:  runCacheClear,
		},
	)
	return cmd
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	info, ok := a.store.Info(cmd.Context())
	if !ok {
		fmt.Fprintf(out, "no cached envelope (%s backend)\n", cfg.CacheBackend)
		return nil
	}
	fmt.Fprintf(out, "backend: %s\n", cfg.CacheBackend)
	fmt.Fprintf(out, "size:    %d bytes\n", info.SizeBytes)
	fmt.Fprintf(out, "written: %s\n", info.WrittenAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "age:     %s (fresh for %s)\n", info.Age.Round(time.Second), cache.FreshnessWindow)
	fmt.Fprintf(out, "fresh:   %t\n", info.Fresh)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	a.ctrl.ClearCache(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}
