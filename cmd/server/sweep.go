package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sweepCmd runs one auto-approval pass, for deployments that prefer cron to
// the in-process scheduler.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Auto-approve every request whose approval window has elapsed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.service.AutoApproveSweep(cmd.Context(), a.service.Now())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "auto-approved %d request(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
