package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/markov/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// ParseTemplate checks a format template without building a Formatter.
func ParseTemplate(tmpl string) error {
	_, err := template.New("format").Parse(tmpl)
	return err
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil {
		p := e.Current.Playback
		data.Song = string(p.Current)
		data.Title = p.Current.Title()
		data.Dir = p.Current.Dir()
		data.Previous = string(p.Previous)
		data.State = string(p.State)
		data.Volume = p.Volume
		data.Muted = p.Muted
		data.Mode = e.Current.Mode
		data.Reason = e.Current.Reason.String()
		data.Weight = e.Current.Weight
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Song      string
	Title     string
	Dir       string
	Previous  string
	State     string
	Mode      string
	Reason    string
	Weight    float32
	Volume    int
	Muted     bool
}

func songLabel(id core.SongID) string {
	if dir := id.Dir(); dir != "" {
		return fmt.Sprintf("%s (%s)", id.Title(), dir)
	}
	return id.Title()
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventSongChange:
		if e.Current != nil && e.Current.Playback.HasSong() {
			return "Now playing: " + songLabel(e.Current.Playback.Current)
		}
		return "Song changed"

	case EventSongComplete:
		if e.Previous != nil && e.Previous.Playback.HasSong() {
			return fmt.Sprintf("Finished: %s -> %s",
				songLabel(e.Previous.Playback.Current),
				songLabel(e.Current.Playback.Current))
		}
		return "Song completed"

	case EventSongSkip:
		if e.Previous != nil && e.Previous.Playback.HasSong() {
			return fmt.Sprintf("Skipped: %s -> %s",
				songLabel(e.Previous.Playback.Current),
				songLabel(e.Current.Playback.Current))
		}
		return "Song skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", e.Current.Playback.Volume)
		}
		return "Volume changed"

	case EventMuteChange:
		if e.Current != nil && e.Current.Playback.Muted {
			return "Muted"
		}
		return "Unmuted"

	case EventModeChange:
		if e.Current != nil {
			return "Mode: " + e.Current.Mode
		}
		return "Mode changed"

	case EventStopped:
		return "Stopped"

	default:
		return "Unknown event"
	}
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventSongChange:
		return "🎵"
	case EventSongComplete:
		return "✅"
	case EventSongSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventVolumeChange:
		return "🔊"
	case EventMuteChange:
		return "🔇"
	case EventModeChange:
		return "🔀"
	case EventStopped:
		return "⏹️"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventSongChange:
		return "song_change"
	case EventSongComplete:
		return "song_complete"
	case EventSongSkip:
		return "song_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventVolumeChange:
		return "volume_change"
	case EventMuteChange:
		return "mute_change"
	case EventModeChange:
		return "mode_change"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// String returns the event type name.
func (t EventType) String() string {
	return eventTypeName(t)
}
