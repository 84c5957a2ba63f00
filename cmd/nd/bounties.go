package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/spf13/cobra"
)

var bountiesCmd = &cobra.Command{
	Use:     "bounties",
	Short:   "List bounties on the board",
	GroupID: "bounties",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListBountiesRequest{}
		req.Status, _ = cmd.Flags().GetString("status")
		req.Beat, _ = cmd.Flags().GetString("beat")
		req.Creator, _ = cmd.Flags().GetString("creator")
		req.Skills, _ = cmd.Flags().GetStringSlice("skill")
		req.Sort, _ = cmd.Flags().GetString("sort")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := newsClient.ListBounties(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing bounties: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		printBountyList(cmd.OutOrStdout(), resp.Bounties, resp.Total)
		return nil
	},
}

var bountyCmd = &cobra.Command{
	Use:     "bounty <id>",
	Short:   "Show one bounty and its claims",
	GroupID: "bounties",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newsClient.GetBounty(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting bounty %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), d)
			return nil
		}
		printBounty(cmd.OutOrStdout(), d)
		return nil
	},
}

var bountyCreateCmd = &cobra.Command{
	Use:     "bounty-create <title>",
	Short:   "Post a bounty for coverage you want",
	GroupID: "bounties",
	Long: `Post a bounty. Sign the message with the same timestamp you pass to
--timestamp (RFC 3339, within 5 minutes of the server clock):

  ` + model.CreateBountyMessage("<your address>", "<timestamp>"),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		req := &client.CreateBountyRequest{
			BTCAddress: address,
			Title:      args[0],
			Signature:  signature,
		}
		req.Description, _ = cmd.Flags().GetString("description")
		req.AmountSats, _ = cmd.Flags().GetInt64("sats")
		req.CreatorName, _ = cmd.Flags().GetString("name")
		req.Tags, _ = cmd.Flags().GetStringSlice("tag")
		req.Skills, _ = cmd.Flags().GetStringSlice("skill")
		req.BeatSlug, _ = cmd.Flags().GetString("beat")
		req.Deadline, _ = cmd.Flags().GetString("deadline")
		req.Timestamp, _ = cmd.Flags().GetString("timestamp")
		if req.Description == "" {
			return fmt.Errorf("--description is required")
		}
		if req.Timestamp == "" {
			req.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		b, err := newsClient.CreateBounty(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating bounty: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), b)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%d sats)\n", b.ID, b.AmountSats)
		return nil
	},
}

var bountyClaimCmd = &cobra.Command{
	Use:     "bounty-claim <id>",
	Short:   "Claim an open bounty",
	GroupID: "bounties",
	Long: `Claim an open bounty you intend to cover. Sign the message:

  ` + model.ClaimBountyMessage("<id>", "<your address>"),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")
		d, err := newsClient.ClaimBounty(context.Background(), args[0], &client.ClaimBountyRequest{
			BTCAddress: address,
			Note:       note,
			Signature:  signature,
		})
		if err != nil {
			return fmt.Errorf("claiming bounty %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), d)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s (%d claims)\n", d.ID, d.ClaimCount)
		return nil
	},
}

var bountyStatusCmd = &cobra.Command{
	Use:     "bounty-status <id> <status>",
	Short:   "Move one of your bounties to a new status",
	GroupID: "bounties",
	Long: `Set a bounty you posted to open, claimed, completed or cancelled.
Completed and cancelled are final. Sign the message:

  ` + model.UpdateBountyMessage("<id>", "<your address>"),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		b, err := newsClient.UpdateBounty(context.Background(), args[0], &client.UpdateBountyRequest{
			BTCAddress: address,
			Status:     args[1],
			Signature:  signature,
		})
		if err != nil {
			return fmt.Errorf("updating bounty %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), b)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bounty %s is %s\n", b.ID, b.Status)
		return nil
	},
}

var bountyStatsCmd = &cobra.Command{
	Use:     "bounty-stats",
	Short:   "Show bounty board totals",
	GroupID: "bounties",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newsClient.BountyStats(context.Background())
		if err != nil {
			return fmt.Errorf("getting bounty stats: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), st)
			return nil
		}
		printBountyStats(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	bountiesCmd.Flags().String("status", "", "only bounties with this status")
	bountiesCmd.Flags().String("beat", "", "only bounties on this beat")
	bountiesCmd.Flags().String("creator", "", "only bounties posted by this address")
	bountiesCmd.Flags().StringSlice("skill", nil, "only bounties wanting any of these skills (repeatable)")
	bountiesCmd.Flags().String("sort", "newest", "newest, amount_high or amount_low")
	bountiesCmd.Flags().IntP("limit", "n", 20, "maximum bounties to return")
	bountiesCmd.Flags().Int("offset", 0, "skip this many matches")

	bountyCreateCmd.Flags().StringP("description", "d", "", "what you want covered")
	bountyCreateCmd.Flags().Int64("sats", model.MinBountySats, "reward in sats")
	bountyCreateCmd.Flags().String("name", "", "display name for the creator")
	bountyCreateCmd.Flags().StringSliceP("tag", "t", nil, "tags (repeatable)")
	bountyCreateCmd.Flags().StringSlice("skill", nil, "skills wanted (repeatable)")
	bountyCreateCmd.Flags().String("beat", "", "beat slug the bounty belongs to")
	bountyCreateCmd.Flags().String("deadline", "", "RFC 3339 deadline")
	bountyCreateCmd.Flags().String("timestamp", "", "RFC 3339 time you signed (default now)")

	bountyClaimCmd.Flags().String("note", "", "short note for the creator")
}
