package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete artifacts older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		removed, err := svc.Clean(cmd.Context())
		for _, r := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
