package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/session"
)

// Table provides a simple table formatter.
type Table struct {
	w       *tabwriter.Writer
	headers []string
}

// NewTable creates a table writing to out with the given headers.
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{
		w:       tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		headers: headers,
	}
	if len(headers) > 0 {
		_, _ = t.w.Write([]byte(strings.Join(headers, "\t") + "\n"))
	}
	return t
}

// Row adds a row to the table.
func (t *Table) Row(values ...string) {
	_, _ = t.w.Write([]byte(strings.Join(values, "\t") + "\n"))
}

// Flush writes the table output.
func (t *Table) Flush() {
	_ = t.w.Flush()
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StatusIcon returns an icon for the session state.
func StatusIcon(state core.PlayState) string {
	switch state {
	case core.StatePlaying:
		return "▶"
	case core.StatePaused:
		return "⏸"
	case core.StateStopped:
		return "⏹"
	default:
		return "○"
	}
}

// TruncateString truncates a string to maxLen, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatProgress formats a progress bar for a percentage.
func FormatProgress(percent int, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// printSnapshot writes a one-screen summary of a session.
func printSnapshot(out io.Writer, snap session.Snapshot, next int) {
	p := snap.Playback
	if !p.HasSong() {
		fmt.Fprintf(out, "%s %s\n", StatusIcon(p.State), p.State)
		return
	}

	fmt.Fprintf(out, "%s %s\n", StatusIcon(p.State), p.Current)
	if !p.Previous.IsZero() {
		fmt.Fprintf(out, "   after %s (weight %.1f)\n", p.Previous, snap.Weight)
	}
	fmt.Fprintf(out, "   %s %d%%\n", FormatProgress(p.Percent, 30), p.Percent)

	volume := fmt.Sprintf("%d%%", p.Volume)
	if p.Muted {
		volume += " (muted)"
	}
	fmt.Fprintf(out, "   mode: %s  volume: %s  reason: %s\n", snap.Mode, volume, snap.Reason)

	if len(snap.Tired) > 0 {
		names := make([]string, len(snap.Tired))
		for i, t := range snap.Tired {
			names[i] = fmt.Sprintf("%s (%s)", t.Song.Title(), humanize.RelTime(snap.Taken, t.Until, "left", ""))
		}
		fmt.Fprintf(out, "   tired: %s\n", strings.Join(names, ", "))
	}

	if next <= 0 || len(snap.Next) == 0 {
		return
	}
	fmt.Fprintln(out)
	t := NewTable(out, "NEXT", "CHANCE", "WEIGHT")
	for i, c := range snap.Next {
		if i >= next {
			break
		}
		t.Row(TruncateString(string(c.Song), 60), fmt.Sprintf("%.0f%%", c.Probability*100), fmt.Sprintf("%.2f", c.Weight))
	}
	t.Flush()
}

// ago formats a timestamp relative to now.
func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
