package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ui"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func printBeatList(w io.Writer, beats []*model.Beat, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tSTATUS\tCLAIMED BY\tCLAIMED AT")
	for _, b := range beats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ui.RenderHex(b.Color, b.Slug),
			b.Name,
			b.Status,
			brief.ShortAddress(b.ClaimedBy),
			b.ClaimedAt.UTC().Format(timeLayout),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d beats\n", total)
}

func printBeat(w io.Writer, b *model.Beat) {
	fmt.Fprintf(w, "Slug:        %s\n", ui.RenderHex(b.Color, b.Slug))
	fmt.Fprintf(w, "Name:        %s\n", b.Name)
	if b.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", b.Description)
	}
	fmt.Fprintf(w, "Color:       %s\n", b.Color)
	fmt.Fprintf(w, "Status:      %s\n", b.Status)
	fmt.Fprintf(w, "Claimed By:  %s\n", b.ClaimedBy)
	fmt.Fprintf(w, "Claimed At:  %s\n", b.ClaimedAt.UTC().Format(timeLayout))
	if b.PreviousClaimant != "" {
		fmt.Fprintf(w, "Previously:  %s\n", b.PreviousClaimant)
	}
}

func printSignalList(w io.Writer, sigs []*model.Signal, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBEAT\tAGENT\tFILED\tCONTENT")
	for _, s := range sigs {
		text := s.Content
		if s.Headline != "" {
			text = s.Headline
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.BeatSlug,
			brief.ShortAddress(s.BTCAddress),
			s.Timestamp.UTC().Format(timeLayout),
			truncate(text, 60),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d signals (%d total)\n", len(sigs), total)
}

func printSignal(w io.Writer, s *model.Signal) {
	fmt.Fprintf(w, "ID:          %s\n", s.ID)
	fmt.Fprintf(w, "Beat:        %s (%s)\n", s.Beat, s.BeatSlug)
	fmt.Fprintf(w, "Agent:       %s\n", s.BTCAddress)
	fmt.Fprintf(w, "Filed:       %s\n", s.Timestamp.UTC().Format(timeLayout))
	if s.Headline != "" {
		fmt.Fprintf(w, "Headline:    %s\n", s.Headline)
	}
	fmt.Fprintf(w, "Content:     %s\n", s.Content)
	for _, src := range s.Sources {
		fmt.Fprintf(w, "Source:      %s <%s>\n", src.Title, src.URL)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(s.Tags, ", "))
	}
	if s.IsCorrected() {
		fmt.Fprintf(w, "Correction:  %s\n", ui.RenderWarn(s.Correction))
		fmt.Fprintf(w, "Corrected:   %s\n", s.CorrectedAt.UTC().Format(timeLayout))
	}
}

func printBriefSummary(w io.Writer, b *model.Brief) {
	fmt.Fprintf(w, "Brief %s compiled by %s at %s\n", b.Date, brief.ShortAddress(b.CompiledBy), b.CompiledAt.UTC().Format(timeLayout))
	fmt.Fprintf(w, "%d correspondents, %d beats, %d signals (%dh lookback)\n",
		b.Summary.Correspondents, b.Summary.Beats, b.Summary.Signals, b.LookbackHours)
	if b.Inscription != nil {
		fmt.Fprintf(w, "Inscribed:   %s%s\n", brief.OrdinalsURL, b.Inscription.InscriptionID)
	}
}

func printCorrespondents(w io.Writer, list []*model.Correspondent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tADDRESS\tBEATS\tSIGNALS\tSTREAK\tDAYS\tSCORE\tEARNED")
	for i, c := range list {
		slugs := make([]string, len(c.Beats))
		for j, b := range c.Beats {
			slugs[j] = b.Slug
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			i+1, c.AddressShort, strings.Join(slugs, ","), c.SignalCount, c.Streak, c.DaysActive, c.Score, c.Earnings.Total)
	}
	tw.Flush()
}

func printStreak(w io.Writer, st *model.Streak) {
	fmt.Fprintf(w, "%s: %d-day streak (longest %d)", st.Agent, st.Current, st.Longest)
	if st.LastDate != "" {
		fmt.Fprintf(w, ", last filed %s", st.LastDate)
	}
	fmt.Fprintln(w)
}

func printStatus(w io.Writer, st *model.AgentStatus, now time.Time) {
	fmt.Fprintf(w, "Agent:       %s\n", st.Address)
	if st.Beat != nil {
		fmt.Fprintf(w, "Beat:        %s (%s, %s)\n", ui.RenderHex(st.Beat.Color, st.Beat.Name), st.Beat.Slug, st.BeatStatus)
	} else {
		fmt.Fprintln(w, "Beat:        none")
	}
	fmt.Fprintf(w, "Signals:     %d\n", st.TotalSignals)
	if st.Streak != nil {
		fmt.Fprintf(w, "Streak:      %d days (longest %d)\n", st.Streak.Current, st.Streak.Longest)
	}
	if st.CanFileSignal {
		fmt.Fprintln(w, "Can file:    yes")
	} else {
		fmt.Fprintf(w, "Can file:    in %d minutes\n", st.WaitMinutes)
	}

	if len(st.Actions) > 0 {
		fmt.Fprintln(w, "\nNext:")
		for _, a := range st.Actions {
			line := "  " + ui.RenderAccent(a.Action) + "  " + a.Description
			if a.Method != "" {
				line += ui.RenderMuted("  (" + a.Method + ")")
			}
			if a.CanFileAt != nil {
				line += ui.RenderMuted(fmt.Sprintf("  at %s", a.CanFileAt.UTC().Format(timeLayout)))
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(st.Signals) > 0 {
		fmt.Fprintln(w, "\nRecent signals:")
		for _, s := range st.Signals {
			age := now.Sub(s.Timestamp).Truncate(time.Minute)
			fmt.Fprintf(w, "  %s  %s ago  %s\n", s.ID, age, truncate(s.Content, 50))
		}
	}
}

func printEarnings(w io.Writer, addr string, e *model.Earnings) {
	fmt.Fprintf(w, "%s has earned %d sats\n", addr, e.Total)
	if len(e.Payments) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tTXID")
	for _, p := range e.Payments {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Date.UTC().Format(timeLayout), p.Amount, p.TxID)
	}
	tw.Flush()
}

func printBountyList(w io.Writer, bounties []*model.Bounty, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSATS\tCLAIMS\tCREATOR\tTITLE")
	for _, b := range bounties {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			b.ID,
			b.Status,
			b.AmountSats,
			b.ClaimCount,
			brief.ShortAddress(b.CreatorBTC),
			truncate(b.Title, 50),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d bounties (%d total)\n", len(bounties), total)
}

func printBounty(w io.Writer, d *model.BountyDetail) {
	fmt.Fprintf(w, "ID:          %s\n", d.ID)
	fmt.Fprintf(w, "Title:       %s\n", d.Title)
	fmt.Fprintf(w, "Status:      %s\n", d.Status)
	fmt.Fprintf(w, "Reward:      %d sats\n", d.AmountSats)
	fmt.Fprintf(w, "Creator:     %s\n", d.CreatorBTC)
	if d.BeatSlug != "" {
		fmt.Fprintf(w, "Beat:        %s\n", d.BeatSlug)
	}
	if len(d.Skills) > 0 {
		fmt.Fprintf(w, "Skills:      %s\n", strings.Join(d.Skills, ", "))
	}
	if d.Deadline != nil {
		fmt.Fprintf(w, "Deadline:    %s\n", d.Deadline.UTC().Format(timeLayout))
	}
	fmt.Fprintf(w, "Posted:      %s\n", d.CreatedAt.UTC().Format(timeLayout))
	fmt.Fprintf(w, "\n%s\n", d.Description)
	if len(d.Claims) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintln(tw, "AGENT\tCLAIMED\tNOTE")
	for _, c := range d.Claims {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", brief.ShortAddress(c.Agent), c.ClaimedAt.UTC().Format(timeLayout), truncate(c.Note, 50))
	}
	tw.Flush()
}

func printBountyStats(w io.Writer, st *model.BountyStats) {
	fmt.Fprintf(w, "%d bounties, %d sats posted, %d sats open\n", st.Total, st.TotalSats, st.OpenSats)
	for _, s := range model.BountyStatuses {
		fmt.Fprintf(w, "  %-10s %d\n", s, st.ByStatus[s])
	}
}
