package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/tui/styles"
)

// History displays recently started songs
type History struct{}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{}
}

// Render renders the history panel. Entries are newest first; now is the
// reference time for ages.
func (h *History) Render(entries []core.HistoryEntry, tired map[core.SongID]bool, now time.Time, width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(entries, tired, now, width-4, height-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (h *History) renderHistory(entries []core.HistoryEntry, tired map[core.SongID]bool, now time.Time, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	for i, entry := range entries {
		if i >= maxLines {
			break
		}

		ago := formatTimeAgo(entry.StartedAt, now)

		icon := "✓"
		switch {
		case i == 0:
			icon = "▶"
		case tired[entry.Song]:
			icon = "z"
		}

		available := width - 3 - len(ago)
		name := truncate(entry.Song.Title(), available)

		padding := width - 2 - len([]rune(name)) - len(ago)
		if padding < 1 {
			padding = 1
		}

		line := fmt.Sprintf("%s %s%s%s",
			styles.Dim.Render(icon),
			name,
			lipgloss.NewStyle().Width(padding).Render(""),
			styles.Dim.Render(ago))

		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatTimeAgo(t, now time.Time) string {
	if now.Sub(t) < time.Minute {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
