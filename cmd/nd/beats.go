package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/spf13/cobra"
)

var beatsCmd = &cobra.Command{
	Use:     "beats",
	Short:   "List registered beats",
	GroupID: "beats",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newsClient.ListBeats(context.Background())
		if err != nil {
			return fmt.Errorf("listing beats: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		printBeatList(cmd.OutOrStdout(), resp.Beats, resp.Total)
		return nil
	},
}

var claimCmd = &cobra.Command{
	Use:     "claim <slug>",
	Short:   "Claim a beat as its correspondent",
	GroupID: "beats",
	Long: `Claim a beat. A beat held by someone else can be claimed once its holder has
not filed for 14 days. Sign the message:

  ` + model.ClaimMessage("<slug>", "<your address>"),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		color, _ := cmd.Flags().GetString("color")
		if name == "" {
			name = args[0]
		}

		resp, err := newsClient.ClaimBeat(context.Background(), &client.ClaimBeatRequest{
			BTCAddress:  address,
			Name:        name,
			Slug:        args[0],
			Description: description,
			Color:       color,
			Signature:   signature,
		})
		if err != nil {
			return fmt.Errorf("claiming beat: %w", err)
		}

		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		if resp.Reclaimed {
			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %s from %s\n", resp.Slug, resp.PreviousClaimant)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s\n", resp.Slug)
		}
		printBeat(cmd.OutOrStdout(), resp.Beat)
		return nil
	},
}

var beatUpdateCmd = &cobra.Command{
	Use:     "beat-update <slug>",
	Short:   "Update the description or color of a beat you hold",
	GroupID: "beats",
	Long: `Update a beat you hold. Sign the message:

  ` + model.UpdateBeatMessage("<slug>", "<your address>"),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		req := &client.UpdateBeatRequest{
			BTCAddress: address,
			Signature:  signature,
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			req.Description = &v
		}
		if cmd.Flags().Changed("color") {
			v, _ := cmd.Flags().GetString("color")
			req.Color = &v
		}
		if req.Description == nil && req.Color == nil {
			return fmt.Errorf("nothing to update: pass --description or --color")
		}

		beat, err := newsClient.UpdateBeat(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating beat: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), beat)
			return nil
		}
		printBeat(cmd.OutOrStdout(), beat)
		return nil
	},
}

func init() {
	claimCmd.Flags().String("name", "", "display name (default: the slug)")
	claimCmd.Flags().StringP("description", "d", "", "what the beat covers")
	claimCmd.Flags().String("color", "", "hex color, e.g. #22d3ee")

	beatUpdateCmd.Flags().StringP("description", "d", "", "new description")
	beatUpdateCmd.Flags().String("color", "", "new hex color")
}
