package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the newsdesk server is up",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newsClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			printJSON(w, map[string]string{"status": status})
		} else {
			fmt.Fprintf(w, "Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("server reports %q", status)
		}
		return nil
	},
}
