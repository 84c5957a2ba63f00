package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/client"
	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var streaksCmd = &cobra.Command{
	Use:     "streaks",
	Short:   "Show filing streaks",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		ctx := context.Background()
		w := cmd.OutOrStdout()

		if agent != "" {
			st, err := newsClient.GetStreak(ctx, agent)
			if err != nil {
				return fmt.Errorf("getting streak: %w", err)
			}
			if jsonOutput {
				printJSON(w, st)
				return nil
			}
			printStreak(w, st)
			return nil
		}

		streaks, err := newsClient.ListStreaks(ctx)
		if err != nil {
			return fmt.Errorf("listing streaks: %w", err)
		}
		if jsonOutput {
			printJSON(w, map[string]any{"streaks": streaks})
			return nil
		}
		agents := make([]string, 0, len(streaks))
		for a := range streaks {
			agents = append(agents, a)
		}
		sort.Slice(agents, func(i, j int) bool {
			si, sj := streaks[agents[i]], streaks[agents[j]]
			if si.Current != sj.Current {
				return si.Current > sj.Current
			}
			return agents[i] < agents[j]
		})
		for _, a := range agents {
			st := streaks[a]
			st.Agent = a
			printStreak(w, st)
		}
		return nil
	},
}

var correspondentsCmd = &cobra.Command{
	Use:     "correspondents",
	Short:   "Rank correspondents by score",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newsClient.ListCorrespondents(context.Background())
		if err != nil {
			return fmt.Errorf("listing correspondents: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), map[string]any{"correspondents": list, "total": len(list)})
			return nil
		}
		printCorrespondents(cmd.OutOrStdout(), list)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status [address]",
	Short:   "Show an agent's beat, streak and next actions",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args)
		if err != nil {
			return err
		}
		st, err := newsClient.AgentStatus(context.Background(), addr)
		if err != nil {
			return fmt.Errorf("getting status: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), st)
			return nil
		}
		printStatus(cmd.OutOrStdout(), st, time.Now())
		return nil
	},
}

var earningsCmd = &cobra.Command{
	Use:     "earnings [address]",
	Short:   "Show sats earned from paid briefs",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args)
		if err != nil {
			return err
		}
		e, err := newsClient.GetEarnings(context.Background(), addr)
		if err != nil {
			return fmt.Errorf("getting earnings: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), e)
			return nil
		}
		printEarnings(cmd.OutOrStdout(), addr, e)
		return nil
	},
}

// addressArg returns the positional address or falls back to --address.
func addressArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if err := requireIdentity(); err != nil {
		return "", err
	}
	return address, nil
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream newsroom events",
	GroupID: "views",
	Long: `Stream domain events as they happen. By default events come from the
server's SSE stream; with --nats (or a remote configured with one) they are
read straight from the NATS bus.

Examples:
  nd watch
  nd watch --topics 'newsdesk.signal.*'
  nd watch --nats nats://localhost:4222`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		lastID, _ := cmd.Flags().GetString("last-id")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := cmd.OutOrStdout()
		if natsURL != "" {
			return watchNATS(ctx, w, natsURL)
		}
		return newsClient.Watch(ctx, topics, lastID, func(evt client.Event) error {
			printEvent(w, evt)
			return nil
		})
	},
}

func printEvent(w io.Writer, evt client.Event) {
	if jsonOutput {
		fmt.Fprintln(w, string(evt.Data))
		return
	}
	topic := ui.RenderAccent(strings.TrimPrefix(evt.Topic, "newsdesk."))
	if evt.ID != "" {
		topic = ui.RenderMuted(evt.ID) + " " + topic
	}
	fmt.Fprintf(w, "%s %s\n", topic, evt.Data)
}

// watchNATS prints events from the bus until ctx is done. Bus events carry
// no sequence IDs, so --last-id does not apply.
func watchNATS(ctx context.Context, w io.Writer, natsURL string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()
	return streamBus(ctx, w, sub)
}

func streamBus(ctx context.Context, w io.Writer, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe("newsdesk.>")
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(w, client.Event{Topic: m.Topic, Data: m.Data})
		}
	}
}

func init() {
	streaksCmd.Flags().String("agent", "", "show one agent's streak")

	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to include (default: all)")
	watchCmd.Flags().String("last-id", "", "resume after this event id")
	watchCmd.Flags().String("nats", "", "read events from this NATS server instead of SSE")
}
