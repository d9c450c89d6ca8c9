package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/config"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
)

func main() {
	// Optional local overrides; real environment variables win.
	_ = godotenv.Load(".env")

	rootCmd := &cobra.Command{
		Use:   "floodmap",
		Short: "Flood incident map data pipeline",
		Long: `floodmap fetches the SOS flood-incident feed, validates and filters the
reports, and keeps the marker layer and notes list in sync with upstream.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newFetchCmd(), newCacheCmd(), newPrefsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, nil, err
	}
	return cfg, observability.NewLogger(cfg), nil
}
