package render

import (
	"io"
	"sort"
	"time"

	"github.com/joss/storefront/internal/audit"
)

// Audit renders the command journal.
type Audit struct {
	*Writer
}

// NewAudit creates an Audit renderer writing to w.
func NewAudit(w io.Writer) *Audit {
	return &Audit{Writer: NewWriter(w)}
}

// Events renders a list of audit events.
func (a *Audit) Events(events []audit.Event) {
	if len(events) == 0 {
		a.Empty("No activity recorded")
		return
	}

	a.Header("ACTIVITY (%d events)", len(events))

	for i := range events {
		e := &events[i]
		a.Println("%s", a.formatEventLine(StatusIcon(string(e.Status)), e))
		if e.ErrorMessage != "" {
			a.Nested("%s", Truncate(e.ErrorMessage, 70))
		}
	}
}

// Stats renders journal statistics.
func (a *Audit) Stats(stats *audit.Stats) {
	a.Header("ACTIVITY STATISTICS")

	a.Item("Total events:   %d", stats.Total)
	a.Item("Success:        %d", stats.Success)
	a.Item("Errors:         %d", stats.Errors)
	a.Item("Refused:        %d", stats.Refused)

	if stats.AvgDurationMs > 0 {
		a.Line()
		a.Item("Avg duration:   %.0fms", stats.AvgDurationMs)
		a.Item("Max duration:   %dms", stats.MaxDurationMs)
	}

	if len(stats.ByCategory) > 0 {
		a.Section("BY CATEGORY")
		cats := make([]string, 0, len(stats.ByCategory))
		for cat := range stats.ByCategory {
			cats = append(cats, string(cat))
		}
		sort.Strings(cats)
		for _, cat := range cats {
			cs := stats.ByCategory[audit.Category(cat)]
			a.Item("%-10s %d total, %d errors", cat+":", cs.Total, cs.Errors)
		}
	}
}

func (a *Audit) formatEventLine(icon string, e *audit.Event) string {
	line := icon + " [" + e.StartedAt.Format("2006-01-02 15:04:05") + "] " +
		string(e.Category) + "/" + e.Operation

	if e.DurationMs > 0 {
		line += " (" + FormatDuration(time.Duration(e.DurationMs)*time.Millisecond) + ")"
	}
	if e.User != "" {
		line += " by " + e.User
	}
	return line
}
