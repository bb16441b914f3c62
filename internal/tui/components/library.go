package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/markov/internal/browser"
	"github.com/tessro/markov/internal/tui/styles"
)

// Library displays the directory browser
type Library struct{}

// NewLibrary creates a new Library component
func NewLibrary() *Library {
	return &Library{}
}

// Render renders the library panel. b may be nil when no library is configured.
func (l *Library) Render(b *browser.Browser, width, height int, focused bool) string {
	name := "Library"
	if b != nil && b.Dir() != "" {
		name = "Library: " + truncate(b.Dir(), width-14)
	}
	title := styles.PanelTitle(name, focused)

	var content string
	switch {
	case b == nil:
		content = styles.Muted.Render("No library")
	case len(b.Entries()) == 0:
		content = styles.Muted.Render("Empty directory")
	default:
		content = l.renderEntries(b, width-4, height-4, focused)
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

func (l *Library) renderEntries(b *browser.Browser, width, maxLines int, focused bool) string {
	entries := b.Entries()
	cursor := b.Cursor()

	// Keep the cursor in view
	start := 0
	if maxLines > 0 && cursor >= maxLines {
		start = cursor - maxLines + 1
	}
	end := min(start+maxLines, len(entries))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		e := entries[i]

		selector := "  "
		if focused && i == cursor {
			selector = "▸ "
		}

		icon := "♪"
		name := e.Name
		if e.IsDir {
			icon = "📁"
			name += "/"
		}
		name = truncate(name, width-5)
		if i == cursor && focused {
			name = styles.Highlight.Render(name)
		}

		lines = append(lines, fmt.Sprintf("%s%s %s", selector, icon, name))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
