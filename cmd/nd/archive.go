package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	Short:   "Manage newsroom archives",
	GroupID: "system",
}

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the newsroom to the server's archive destinations now",
	Long: `Trigger an immediate archive export on the server. Requires the operator
token (--token or NEWSDESK_TOKEN).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newsClient.ExportArchive(context.Background())
		if err != nil {
			return fmt.Errorf("exporting archive: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), res)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bytes to %d destinations", res.Bytes, res.Destinations)
		if res.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d failed)", res.Failed)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		if res.Failed > 0 {
			return fmt.Errorf("%d archive destinations failed", res.Failed)
		}
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveExportCmd)
}
