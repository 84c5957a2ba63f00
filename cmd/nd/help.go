package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/ui"
	"github.com/spf13/cobra"
)

var (
	// Group headers such as "Beats:" or "Flags:".
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)
	// Two-space indented command name followed by its description.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)
	// Flag type annotations, e.g. "--limit int".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(string|int|duration|strings|stringArray)`)
	reDefault  = regexp.MustCompile(`\(default "[^"]*"\)`)
)

// colorizedHelpFunc returns a help function that styles cobra's usage text
// when stdout supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	s = reGroupHeader.ReplaceAllStringFunc(s, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	s = reCommand.ReplaceAllStringFunc(s, func(m string) string {
		parts := reCommand.FindStringSubmatch(m)
		return parts[1] + ui.RenderCommand(parts[2]) + parts[3]
	})
	s = reFlagType.ReplaceAllStringFunc(s, func(m string) string {
		parts := reFlagType.FindStringSubmatch(m)
		return parts[1] + ui.RenderMuted(parts[2])
	})
	return reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
}
