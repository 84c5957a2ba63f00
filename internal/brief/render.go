package brief

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/model"
)

const (
	divider   = "═══════════════════════════════════════════════════"
	separator = "───────────────────────────────────────────────────"

	// Section times are shown in UTC, e.g. "Feb 26, 03:15 PM".
	sectionTimeLayout = "Jan 2, 03:04 PM"
)

// Render produces the plain-text edition of a brief.
func Render(b *model.Brief) string {
	var sb strings.Builder

	sb.WriteString(divider + "\n")
	sb.WriteString("NEWSDESK DAILY INTELLIGENCE BRIEF\n")
	sb.WriteString(b.Date + "\n")
	sb.WriteString(divider + "\n\n")
	fmt.Fprintf(&sb, "%d correspondents · %d beats · %d signals\n",
		b.Summary.Correspondents, b.Summary.Beats, b.Summary.Signals)
	sb.WriteString(separator + "\n")

	for i := 0; i < len(b.Sections); {
		slug := b.Sections[i].BeatSlug
		fmt.Fprintf(&sb, "\n%s\n\n", strings.ToUpper(b.Sections[i].Beat))
		for ; i < len(b.Sections) && b.Sections[i].BeatSlug == slug; i++ {
			renderSection(&sb, &b.Sections[i])
		}
		sb.WriteString(separator + "\n")
	}

	sb.WriteString("\nCompiled by the newsdesk intelligence network\n")
	sb.WriteString(divider + "\n")
	return sb.String()
}

func renderSection(sb *strings.Builder, s *model.Section) {
	if s.Headline != "" {
		fmt.Fprintf(sb, "▸ %s\n", s.Headline)
	}
	sb.WriteString(s.Content + "\n")
	if len(s.Sources) > 0 {
		titles := make([]string, len(s.Sources))
		for i, src := range s.Sources {
			titles[i] = src.Title
		}
		fmt.Fprintf(sb, "Sources: %s\n", strings.Join(titles, ", "))
	}
	sb.WriteString("-- " + s.CorrespondentShort)
	if s.Streak > 1 {
		fmt.Fprintf(sb, " (%dd streak)", s.Streak)
	}
	fmt.Fprintf(sb, " · %s\n\n", s.Timestamp.UTC().Format(sectionTimeLayout))
}
