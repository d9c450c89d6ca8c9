package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/config"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/prefs"
)

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change saved preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			p := store.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:      %s\n", store.Path())
			fmt.Fprintf(out, "map style: %s (%s)\n", p.MapStyle, prefs.TileURL(p.MapStyle))
			fmt.Fprintf(out, "use cache: %t\n", p.UseCache)
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "style NAME",
			Short: "Set the base map style",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openPrefs()
				if err != nil {
					return err
				}
				style, err := store.SetMapStyle(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "map style set to %s\n", style)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cache on|off",
			Short: "Enable or disable the envelope cache",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled, err := parseSwitch(args[0])
				if err != nil {
					return err
				}
				store, err := openPrefs()
				if err != nil {
					return err
				}
				if err := store.SetUseCache(enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "use cache set to %t\n", enabled)
				return nil
			},
		},
	)
	return cmd
}

func openPrefs() (*prefs.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return prefs.Open(cfg.PrefsPath)
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
