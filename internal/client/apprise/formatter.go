package apprise

import (
	"fmt"
	"strings"
)

// Transition kinds reported by the tracker.
const (
	KindAvailable = "available"
	KindProgress  = "progress"
	KindRegressed = "regressed"
)

// TransitionDetail is one tracked show whose overall status changed.
type TransitionDetail struct {
	ShowTitle string
	TMDBID    int
	From      string // empty when the show was never seen before
	To        string
	Summary   string
	Kind      string
}

// SlackFormatter formats messages for Slack readability
type SlackFormatter struct{}

// FormatTransitions groups status changes into one message body.
func (f *SlackFormatter) FormatTransitions(details []TransitionDetail, dryRun bool) string {
	var sb strings.Builder

	if dryRun {
		sb.WriteString("⚠️ *DRY RUN MODE*\n\n")
	}

	groups := map[string][]TransitionDetail{}
	for _, d := range details {
		groups[d.Kind] = append(groups[d.Kind], d)
	}

	f.section(&sb, "✅ NOW AVAILABLE", groups[KindAvailable])
	f.section(&sb, "📈 PROGRESS", groups[KindProgress])
	f.section(&sb, "⚠️ REGRESSED", groups[KindRegressed])

	return strings.TrimRight(sb.String(), "\n")
}

func (f *SlackFormatter) section(sb *strings.Builder, header string, items []TransitionDetail) {
	if len(items) == 0 {
		return
	}

	fmt.Fprintf(sb, "*%s (%d):*\n", header, len(items))
	for _, item := range items {
		from := item.From
		if from == "" {
			from = "new"
		}
		fmt.Fprintf(sb, "• %s: %s → %s", item.ShowTitle, humanize(from), humanize(item.To))
		if item.Summary != "" {
			fmt.Fprintf(sb, " (%s)", item.Summary)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// humanize turns "partially_available" into "partially available".
func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
