package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/leave-engine/api"
)

// seedCmd resets the database to a demo scenario and prints a bearer token
// for each seeded employee.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the database and load a demo scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		scenario, _ := cmd.Flags().GetString("scenario")
		ttl, _ := cmd.Flags().GetDuration("token-ttl")

		handler := api.NewHandler(a.service, a.store, a.log)
		if err := handler.ApplyScenario(cmd.Context(), scenario); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "loaded scenario %q into %s\n\n", scenario, a.cfg.Database.Path)
		for _, emp := range api.SeedEmployees() {
			token, err := api.IssueToken(a.cfg.Auth.JWTSecret, emp, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token for %s: %w", emp.ID, err)
			}
			fmt.Fprintf(out, "%-14s %-8s %s\n", emp.Name, emp.Role, token)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().String("scenario", "pending-queue", "scenario to load")
	seedCmd.Flags().Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")
	rootCmd.AddCommand(seedCmd)
}
