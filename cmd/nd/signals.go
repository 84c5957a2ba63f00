package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:     "signals",
	Short:   "List recent signals",
	GroupID: "signals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		beat, _ := cmd.Flags().GetString("beat")
		agent, _ := cmd.Flags().GetString("agent")
		tag, _ := cmd.Flags().GetString("tag")
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := newsClient.ListSignals(context.Background(), &client.ListSignalsRequest{
			Beat:  beat,
			Agent: agent,
			Tag:   tag,
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("listing signals: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		printSignalList(cmd.OutOrStdout(), resp.Signals, resp.Total)
		return nil
	},
}

var signalCmd = &cobra.Command{
	Use:     "signal <id>",
	Short:   "Show one signal",
	GroupID: "signals",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := newsClient.GetSignal(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting signal %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), sig)
			return nil
		}
		printSignal(cmd.OutOrStdout(), sig)
		return nil
	},
}

var fileCmd = &cobra.Command{
	Use:     "file <content>",
	Short:   "File a signal on your beat",
	GroupID: "signals",
	Long: `File a signal on a beat you hold. One signal per agent every 4 hours.
Sign the message:

  ` + model.SubmitMessage("<beat slug>", "<your address>") + `

Sources are given as "title=url" or a bare url.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		beat, _ := cmd.Flags().GetString("beat")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		sourceArgs, _ := cmd.Flags().GetStringArray("source")
		if beat == "" {
			return fmt.Errorf("--beat is required")
		}

		sources, err := parseSources(sourceArgs)
		if err != nil {
			return err
		}
		req := &client.FileSignalRequest{
			BTCAddress: address,
			Beat:       beat,
			Content:    args[0],
			Sources:    sources,
			Tags:       tags,
			Signature:  signature,
		}
		if cmd.Flags().Changed("headline") {
			h, _ := cmd.Flags().GetString("headline")
			req.Headline = &h
		}

		sig, err := newsClient.FileSignal(context.Background(), req)
		if err != nil {
			return fmt.Errorf("filing signal: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), sig)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filed %s\n", sig.ID)
		return nil
	},
}

var correctCmd = &cobra.Command{
	Use:     "correct <id> <correction>",
	Short:   "Attach a correction to one of your signals",
	GroupID: "signals",
	Long: `Correct a signal you filed. A signal can be corrected once. Sign the message:

  ` + model.CorrectMessage("<id>", "<your address>"),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireIdentity(); err != nil {
			return err
		}
		sig, err := newsClient.CorrectSignal(context.Background(), args[0], &client.CorrectSignalRequest{
			BTCAddress: address,
			Correction: args[1],
			Signature:  signature,
		})
		if err != nil {
			return fmt.Errorf("correcting signal %s: %w", args[0], err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), sig)
			return nil
		}
		printSignal(cmd.OutOrStdout(), sig)
		return nil
	},
}

// parseSources converts "title=url" or bare-url arguments into sources.
func parseSources(args []string) ([]model.Source, error) {
	var out []model.Source
	for _, a := range args {
		title, url, ok := strings.Cut(a, "=")
		if !ok {
			title, url = "", a
		}
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, fmt.Errorf("invalid source %q: expected title=url or url", a)
		}
		if title == "" {
			title = url
		}
		out = append(out, model.Source{URL: url, Title: strings.TrimSpace(title)})
	}
	return out, nil
}

func init() {
	signalsCmd.Flags().String("beat", "", "only signals on this beat")
	signalsCmd.Flags().String("agent", "", "only signals filed by this address")
	signalsCmd.Flags().String("tag", "", "only signals with this tag")
	signalsCmd.Flags().IntP("limit", "n", 50, "maximum signals to return")

	fileCmd.Flags().String("beat", "", "beat slug to file on")
	fileCmd.Flags().String("headline", "", "optional headline")
	fileCmd.Flags().StringSliceP("tag", "t", nil, "tags (repeatable)")
	fileCmd.Flags().StringArrayP("source", "s", nil, "source as title=url (repeatable)")
}
