package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	address    string
	signature  string

	newsClient client.NewsClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("NEWSDESK_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("NEWSDESK_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "nd <command>",
	Short:         "CLI for the newsdesk correspondent network",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		newsClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if newsClient != nil {
			newsClient.Close()
		}
	},
}

// requireIdentity checks the global --address and --signature flags that
// every write command needs.
func requireIdentity() error {
	if address == "" {
		return errors.New("--address is required (or set NEWSDESK_ADDRESS)")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "newsdesk server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for operator routes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&address, "address", os.Getenv("NEWSDESK_ADDRESS"), "your bc1... correspondent address")
	rootCmd.PersistentFlags().StringVar(&signature, "signature", os.Getenv("NEWSDESK_SIGNATURE"), "base64 signature over the action message")

	rootCmd.AddGroup(
		&cobra.Group{ID: "beats", Title: "Beats:"},
		&cobra.Group{ID: "signals", Title: "Signals:"},
		&cobra.Group{ID: "briefs", Title: "Briefs:"},
		&cobra.Group{ID: "bounties", Title: "Bounties:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Beats
	rootCmd.AddCommand(beatsCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(beatUpdateCmd)

	// Signals
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(correctCmd)

	// Briefs
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(briefsCmd)
	rootCmd.AddCommand(inscribeCmd)
	rootCmd.AddCommand(inscriptionCmd)

	// Bounties
	rootCmd.AddCommand(bountiesCmd)
	rootCmd.AddCommand(bountyCmd)
	rootCmd.AddCommand(bountyCreateCmd)
	rootCmd.AddCommand(bountyClaimCmd)
	rootCmd.AddCommand(bountyStatusCmd)
	rootCmd.AddCommand(bountyStatsCmd)

	// Views
	rootCmd.AddCommand(streaksCmd)
	rootCmd.AddCommand(correspondentsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(earningsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError prints err and, for server errors, the server's hint.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Hint != "" {
			fmt.Fprintf(w, "Hint: %s\n", apiErr.Hint)
		}
		if apiErr.RetryAfter > 0 {
			fmt.Fprintf(w, "Retry after: %ds\n", apiErr.RetryAfter)
		}
	}
}
