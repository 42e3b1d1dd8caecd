package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the configured zones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		zones, err := loadZones(cfg)
		if err != nil {
			return err
		}
		for _, name := range zones.Names() {
			z, err := zones.Lookup(name)
			if err != nil {
				return err
			}
			b := z.Bound()
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %.3f,%.3f %.3f,%.3f\n", name, b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd)
}
