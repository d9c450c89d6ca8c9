package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
)

type fetchOptions struct {
	force    bool
	statuses []int
	victims  []string
	mode     string
	area     string
	areas    int
	notes    int
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load the feed once and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "bypass the envelope cache")
	cmd.Flags().IntSliceVar(&opts.statuses, "status", []int{domain.StatusWaiting}, "status codes to keep")
	cmd.Flags().StringSliceVar(&opts.victims, "victim", nil, "victim types to keep (default all)")
	cmd.Flags().StringVar(&opts.mode, "mode", "any", "victim match mode: any or all")
	cmd.Flags().StringVar(&opts.area, "area", "", "subdistrict to keep")
	cmd.Flags().IntVar(&opts.areas, "areas", 10, "number of areas to list")
	cmd.Flags().IntVar(&opts.notes, "notes", 0, "number of noted records to list")
	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	mode, err := domain.ParseVictimMode(opts.mode)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ctrl.Load(ctx, opts.force); err != nil {
		return err
	}

	all := a.ctrl.Records()
	victims := opts.victims
	if len(victims) == 0 {
		victims = a.ctrl.Status().VictimOptions
	}
	filtered := domain.Filter(all, domain.NewFilterPredicate(opts.statuses, victims, mode, opts.area))

	printSummary(cmd.OutOrStdout(), all, filtered, opts)
	return nil
}

func printSummary(w io.Writer, all, filtered []domain.IncidentRecord, opts *fetchOptions) {
	st := domain.ComputeStatistics(all, filtered)
	fmt.Fprintf(w, "records:     %d\n", st.Total)
	fmt.Fprintf(w, "filtered:    %d\n", st.Filtered)
	fmt.Fprintf(w, "waiting:     %d\n", st.Waiting)
	fmt.Fprintf(w, "in progress: %d\n", st.InProgress)

	areas := domain.AreaOptions(all)
	if len(areas) > opts.areas {
		areas = areas[:opts.areas]
	}
	if len(areas) > 0 {
		fmt.Fprintln(w, "\nareas:")
		for _, a := range areas {
			fmt.Fprintf(w, "  %-24s %d\n", a.Name, a.Count)
		}
	}

	if opts.notes <= 0 {
		return
	}
	fmt.Fprintln(w, "\nnotes:")
	shown := 0
	for _, r := range filtered {
		if !r.HasNote() {
			continue
		}
		fmt.Fprintf(w, "  %s [%s] %s\n", r.Label(), domain.StatusLabel(r.Status), r.Note)
		shown++
		if shown == opts.notes {
			break
		}
	}
}
