package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:     "compile",
	Short:   "Compile today's brief from recent signals",
	GroupID: "briefs",
	Long: `Compile today's brief. Only correspondents who hold a beat may compile.
Sign the message:

  ` + model.CompileMessage("<today>", "<your address>"),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		hours, _ := cmd.Flags().GetInt("hours")

		b, err := newsClient.CompileBrief(context.Background(), &client.CompileBriefRequest{
			BTCAddress: address,
			Signature:  signature,
			Hours:      hours,
		})
		if err != nil {
			return fmt.Errorf("compiling brief: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), b)
			return nil
		}
		printBriefSummary(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefCmd = &cobra.Command{
	Use:     "brief [date]",
	Short:   "Read a brief (latest by default)",
	GroupID: "briefs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := client.BriefOptions{}
		if len(args) == 1 {
			opts.Date = args[0]
		}
		opts.PaymentToken, _ = cmd.Flags().GetString("pay")
		asText, _ := cmd.Flags().GetBool("text")
		ctx := context.Background()

		if asText && !jsonOutput {
			text, err := newsClient.GetBriefText(ctx, opts)
			if err != nil {
				return fmt.Errorf("reading brief: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		}

		resp, err := newsClient.GetBrief(ctx, opts)
		if err != nil {
			return fmt.Errorf("reading brief: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		w := cmd.OutOrStdout()
		printBriefSummary(w, resp.Brief)
		if resp.Payment != nil {
			fmt.Fprintf(w, "Paid:        %s\n", resp.Payment.TxID)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, resp.Text)
		return nil
	},
}

var briefsCmd = &cobra.Command{
	Use:     "briefs",
	Short:   "List compiled brief dates",
	GroupID: "briefs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := newsClient.ListBriefs(context.Background())
		if err != nil {
			return fmt.Errorf("listing briefs: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), map[string][]string{"briefs": dates})
			return nil
		}
		if len(dates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No briefs compiled yet.")
			return nil
		}
		for _, d := range dates {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

var inscribeCmd = &cobra.Command{
	Use:     "inscribe <date> <inscription-id>",
	Short:   "Record the ordinal inscription of a brief",
	GroupID: "briefs",
	Long: `Record that a brief was inscribed on Bitcoin. A brief is inscribed once.
Sign the message:

  ` + model.InscribeMessage("<date>", "<your address>"),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		resp, err := newsClient.InscribeBrief(context.Background(), args[0], &client.InscribeBriefRequest{
			BTCAddress:    address,
			Signature:     signature,
			InscriptionID: args[1],
		})
		if err != nil {
			return fmt.Errorf("inscribing brief %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inscribed brief %s: %s\n", resp.Date, resp.OrdinalLink)
		return nil
	},
}

var inscriptionCmd = &cobra.Command{
	Use:     "inscription <date>",
	Short:   "Show the inscription status of a brief",
	GroupID: "briefs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newsClient.GetInscription(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting inscription for %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), st)
			return nil
		}
		if !st.Inscribed {
			fmt.Fprintf(cmd.OutOrStdout(), "Brief %s is not inscribed.\n", st.Date)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Brief %s inscribed by %s at %s\n%s\n",
			st.Date, st.InscribedBy, st.InscribedAt, st.OrdinalLink)
		return nil
	},
}

func init() {
	compileCmd.Flags().Int("hours", 24, "lookback window in hours (1-168)")

	briefCmd.Flags().Bool("text", false, "print the plain-text rendering only")
	briefCmd.Flags().String("pay", "", "payment token sent as X-PAYMENT")
}
