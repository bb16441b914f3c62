package tail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/session"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func snap(state core.PlayState, current core.SongID, reason session.Reason, at time.Time) *session.Snapshot {
	s := &session.Snapshot{
		Playback: core.PlaybackState{State: state, Current: current, Volume: 50},
		Mode:     "markov",
		Reason:   reason,
		Taken:    at,
	}
	if current != "" {
		s.History = []core.HistoryEntry{{Song: current, StartedAt: at}}
	}
	return s
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDiffStates(t *testing.T) {
	playingA := snap(core.StatePlaying, "a.mp3", session.ReasonInitial, t0)

	completed := snap(core.StatePlaying, "b.mp3", session.ReasonCompleted, t0.Add(time.Minute))
	skipped := snap(core.StatePlaying, "b.mp3", session.ReasonSkipped, t0.Add(time.Minute))
	manual := snap(core.StatePlaying, "b.mp3", session.ReasonManual, t0.Add(time.Minute))
	repeated := snap(core.StatePlaying, "a.mp3", session.ReasonCompleted, t0.Add(time.Minute))

	paused := *playingA
	paused.Playback.State = core.StatePaused

	louder := *playingA
	louder.Playback.Volume = 70
	louder.Playback.Muted = true
	louder.Mode = "shuffle"

	stopped := *playingA
	stopped.Playback.State = core.StateStopped

	tests := []struct {
		name       string
		prev, curr *session.Snapshot
		want       []EventType
	}{
		{"first poll", nil, playingA, []EventType{EventSongChange}},
		{"first poll idle", nil, snap(core.StateIdle, "", session.ReasonNone, t0), nil},
		{"unchanged", playingA, playingA, nil},
		{"completed", playingA, completed, []EventType{EventSongComplete}},
		{"skipped", playingA, skipped, []EventType{EventSongSkip}},
		{"manual", playingA, manual, []EventType{EventSongChange}},
		{"repeat same song", playingA, repeated, []EventType{EventSongComplete}},
		{"pause", playingA, &paused, []EventType{EventPause}},
		{"resume", &paused, playingA, []EventType{EventResume}},
		{"controls", playingA, &louder, []EventType{EventVolumeChange, EventMuteChange, EventModeChange}},
		{"stopped", playingA, &stopped, []EventType{EventStopped}},
		{"nil current", playingA, nil, nil},
	}

	for _, tt := range tests {
		got := types(diffStates(tt.prev, tt.curr))
		if !equalTypes(got, tt.want) {
			t.Errorf("%s: diffStates() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type scriptedSource struct {
	mu    sync.Mutex
	snaps []session.Snapshot
	calls int
}

func (s *scriptedSource) Snapshot(ctx context.Context) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return session.Snapshot{}, errors.New("no snapshot")
	}
	i := s.calls
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.calls++
	return s.snaps[i], nil
}

func TestWatcherStopsWithSession(t *testing.T) {
	src := &scriptedSource{snaps: []session.Snapshot{
		*snap(core.StatePlaying, "a.mp3", session.ReasonInitial, t0),
		*snap(core.StatePlaying, "b.mp3", session.ReasonSkipped, t0.Add(time.Minute)),
		*snap(core.StateStopped, "b.mp3", session.ReasonSkipped, t0.Add(time.Minute)),
	}}

	w := NewWatcher(src, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- w.Start(ctx) }()

	var got []EventType
	for e := range w.Events() {
		got = append(got, e.Type)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := []EventType{EventSongChange, EventSongSkip, EventStopped}
	if !equalTypes(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestWatcherStop(t *testing.T) {
	src := &scriptedSource{snaps: []session.Snapshot{
		*snap(core.StatePlaying, "a.mp3", session.ReasonInitial, t0),
	}}
	w := NewWatcher(src, time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- w.Start(context.Background()) }()

	<-w.Events()
	w.Stop()
	for range w.Events() {
	}
	if err := <-errc; err != nil {
		t.Errorf("Start() after Stop = %v, want nil", err)
	}
}

func TestFormatterLine(t *testing.T) {
	prev := snap(core.StatePlaying, "Artist/Album/01 Intro.mp3", session.ReasonInitial, t0)
	curr := snap(core.StatePlaying, "Artist/Album/02 Song.mp3", session.ReasonCompleted, t0)

	f := NewFormatter(WithEmoji(false))
	got := f.Format(Event{Type: EventSongComplete, Timestamp: t0, Previous: prev, Current: curr})
	want := "Finished: 01 Intro (Artist/Album) -> 02 Song (Artist/Album)"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	f = NewFormatter(WithEmoji(false), WithTimestamp(true))
	got = f.Format(Event{Type: EventVolumeChange, Timestamp: t0, Current: curr})
	if got != "15:04:05 Volume: 50%" {
		t.Errorf("Format() = %q", got)
	}

	f = NewFormatter()
	got = f.Format(Event{Type: EventStopped, Timestamp: t0})
	if !strings.HasSuffix(got, "Stopped") || !strings.HasPrefix(got, "⏹️") {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatterTemplate(t *testing.T) {
	curr := snap(core.StatePlaying, "x/Song.flac", session.ReasonSkipped, t0)
	curr.Weight = 2.5

	f := NewFormatter(WithTemplate("{{.Type}} {{.Title}} {{.Reason}} {{.Weight}}"))
	got := f.Format(Event{Type: EventSongSkip, Timestamp: t0, Current: curr})
	if got != "song_skip Song skipped 2.5" {
		t.Errorf("Format() = %q", got)
	}

	// Execution errors fall back to the plain line.
	f = NewFormatter(WithEmoji(false), WithTemplate("{{.Missing}}"))
	got = f.Format(Event{Type: EventPause, Timestamp: t0, Current: curr})
	if got != "Paused" {
		t.Errorf("Format() fallback = %q", got)
	}

	if err := ParseTemplate("{{"); err == nil {
		t.Error("ParseTemplate() accepted a broken template")
	}
}
