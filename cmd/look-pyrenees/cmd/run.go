package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i474232898/look-pyrenees/internal/pipeline"
)

// errZonesFailed makes the process exit with status 1.
var errZonesFailed = errors.New("one or more zones failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the zones once, then apply retention",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		zoneArg, _ := cmd.Flags().GetString("zone")

		svc, err := newService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		zones, err := svc.ResolveZones(zoneArg)
		if err != nil {
			return err
		}

		rep := svc.Run(cmd.Context(), zones)
		if cfg.ShowResults {
			printReport(cmd.OutOrStdout(), rep)
		}
		if rep.Failed() {
			return errZonesFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("zone", "z", pipeline.AllZones, "zone to process, a comma separated list or all")
	runCmd.Flags().BoolP("show-results", "s", false, "print the selection of each zone and fetch quicklooks")
	rootCmd.AddCommand(runCmd)
}

func printReport(w io.Writer, rep pipeline.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE\tSTATUS\tSEARCHED\tOVERLAPPING\tRECENT\tCLOUDY\tARTIFACTS\tERROR")
	for _, z := range rep.Zones {
		names := make([]string, 0, len(z.Artifacts))
		for _, a := range z.Artifacts {
			names = append(names, filepath.Base(a))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%t\t%s\t%s\n",
			z.Zone, z.Status, z.Trace.Searched, z.Trace.Overlapping, z.Trace.Recent,
			z.TooCloudy, strings.Join(names, ","), z.Error)
	}
	tw.Flush()

	if len(rep.Removed) > 0 {
		fmt.Fprintf(w, "removed by retention: %s\n", strings.Join(rep.Removed, ", "))
	}
}
