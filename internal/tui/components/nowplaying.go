package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/markov/internal/session"
	"github.com/tessro/markov/internal/tui/styles"
)

// NowPlaying displays the current song
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(snap *session.Snapshot, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if snap == nil || !snap.Playback.HasSong() {
		content = styles.Muted.Render("Nothing playing. Press n to start")
		if snap != nil && snap.Playback.State == "stopped" {
			content = styles.Muted.Render("Session stopped")
		}
	} else {
		content = n.renderSong(snap, width-4)
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

func (n *NowPlaying) renderSong(snap *session.Snapshot, width int) string {
	p := snap.Playback

	icon := styles.StatusIcon(string(p.State))
	title := styles.Title.Width(width - 4).Render(truncate(p.Current.Title(), width-4))
	dir := styles.Subtitle.Render(truncate(p.Current.Dir(), width-2))

	from := styles.Dim.Render("first song")
	if !p.Previous.IsZero() {
		from = styles.Dim.Render(fmt.Sprintf("from %s  weight %.1f", truncate(p.Previous.Title(), width/2), snap.Weight))
	}

	progressWidth := width - 8
	if progressWidth < 10 {
		progressWidth = 10
	}
	progress := fmt.Sprintf("%s %3d%%", styles.ProgressBar(p.ProgressPercent(), progressWidth), p.Percent)

	volume := fmt.Sprintf("🔊 %d%%", p.Volume)
	if p.Muted {
		volume = "🔇 muted"
	}
	info := styles.Muted.Render(fmt.Sprintf("%s  %s %s  %s", volume, styles.ModeIcon(snap.Mode), snap.Mode, snap.Reason))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+dir,
		"  "+from,
		"",
		progress,
		"",
		info,
	)
}
