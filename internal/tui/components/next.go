package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/tui/styles"
)

// Next displays where the chain may go from the current song
type Next struct {
	offset int
}

// NewNext creates a new Next component
func NewNext() *Next {
	return &Next{}
}

// ScrollDown scrolls the list down
func (q *Next) ScrollDown() {
	q.offset++
}

// ScrollUp scrolls the list up
func (q *Next) ScrollUp() {
	if q.offset > 0 {
		q.offset--
	}
}

// Render renders the next-song panel
func (q *Next) Render(candidates []selector.Candidate, mode string, width, height int, focused bool) string {
	title := styles.PanelTitle("Up Next", focused)

	var content string
	switch {
	case mode != selector.NameMarkov:
		content = styles.Muted.Render(fmt.Sprintf("%s mode ignores the chain", mode))
	case len(candidates) == 0:
		content = styles.Muted.Render("No learned transitions. Next song is random")
	default:
		content = q.renderCandidates(candidates, width-4, height-4)
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

func (q *Next) renderCandidates(candidates []selector.Candidate, width, maxLines int) string {
	if q.offset >= len(candidates) {
		q.offset = 0
	}

	visibleCount := maxLines - 1 // Leave room for "more" indicator
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := q.offset
	end := min(start+visibleCount, len(candidates))

	lines := make([]string, 0, end-start+1)

	// "XX. " (4) + bar (10) + " 100% " (6) + " w " (~8)
	const barWidth = 10
	const overhead = 28

	for i := start; i < end; i++ {
		c := candidates[i]

		num := styles.Dim.Render(fmt.Sprintf("%2d.", i+1))
		bar := styles.WeightBar(c.Probability, barWidth)
		pct := fmt.Sprintf("%3.0f%%", c.Probability*100)
		name := truncate(c.Song.Title(), width-overhead)
		weight := styles.Dim.Render(fmt.Sprintf("w%.1f", c.Weight))

		lines = append(lines, fmt.Sprintf("%s %s %s %s %s", num, bar, pct, name, weight))
	}

	if end < len(candidates) {
		more := styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(candidates)-end))
		lines = append(lines, more)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
