package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named newsdesk servers",
	GroupID: "system",
	Long: `Named remotes let nd talk to several newsdesk servers. The active remote
supplies the default --http-url and --token, and the NATS URL nd watch uses.
Remotes live in ~/.local/state/newsdesk/remotes.toml.`,
	// Remote subcommands only touch the local remotes file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// updateRemotes loads the remotes file, applies fn and saves the result.
func updateRemotes(fn func(cfg *RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return fmt.Errorf("reading remotes: %w", err)
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	if err := saveRemotesConfig(cfg); err != nil {
		return fmt.Errorf("writing remotes: %w", err)
	}
	return nil
}

func requireRemote(cfg *RemotesConfig, name string) (Remote, error) {
	r, ok := cfg.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

// maskToken shortens a token for list output or stars out its tail for show.
func maskToken(token string, stars bool) string {
	if len(token) <= 8 {
		return token
	}
	if stars {
		return token[:8] + strings.Repeat("*", len(token)-8)
	}
	return token[:8] + "..."
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")
		r := Remote{URL: args[1], Token: token, NATSURL: natsURL}

		err := updateRemotes(func(cfg *RemotesConfig) error {
			cfg.Remotes[args[0]] = r
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q -> %s\n", args[0], r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, err := requireRemote(cfg, args[0]); err != nil {
				return err
			}
			delete(cfg.Remotes, args[0])
			if cfg.Active == args[0] {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, err := requireRemote(cfg, args[0]); err != nil {
				return err
			}
			cfg.Active = args[0]
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using %q\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes; the active one is starred",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return fmt.Errorf("reading remotes: %w", err)
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured (add one with 'nd remote add')")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tURL\tTOKEN\tNATS")
		for _, name := range slices.Sorted(maps.Keys(cfg.Remotes)) {
			r := cfg.Remotes[name]
			mark := "  "
			if name == cfg.Active {
				mark = "* "
			}
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", mark, name, r.URL, maskToken(r.Token, false), r.NATSURL)
		}
		return tw.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one remote (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return fmt.Errorf("reading remotes: %w", err)
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; name one or run 'nd remote use <name>'")
		}
		r, err := requireRemote(&cfg, name)
		if err != nil {
			return err
		}

		if name == cfg.Active {
			name += " (active)"
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "name:\t%s\n", name)
		fmt.Fprintf(tw, "url:\t%s\n", r.URL)
		if r.Token != "" {
			fmt.Fprintf(tw, "token:\t%s\n", maskToken(r.Token, true))
		}
		if r.NATSURL != "" {
			fmt.Fprintf(tw, "nats:\t%s\n", r.NATSURL)
		}
		return tw.Flush()
	},
}

func init() {
	remoteAddCmd.Flags().String("token", "", "operator token sent as a bearer token")
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by nd watch")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
