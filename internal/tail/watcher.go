package tail

import (
	"context"
	"time"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/session"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventSongChange EventType = iota
	EventSongComplete
	EventSongSkip
	EventPause
	EventResume
	EventVolumeChange
	EventMuteChange
	EventModeChange
	EventStopped
)

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *session.Snapshot
	Current   *session.Snapshot
}

// Source provides session snapshots. session.Controller satisfies it.
type Source interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

// Watcher polls a session for state changes and emits events.
type Watcher struct {
	source   Source
	interval time.Duration
	events   chan Event
	done     chan struct{}
}

// NewWatcher creates a new state watcher.
func NewWatcher(source Source, interval time.Duration) *Watcher {
	if interval == 0 {
		interval = time.Second
	}
	return &Watcher{
		source:   source,
		interval: interval,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins polling for state changes. It returns nil once the watched
// session stops.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	var prev *session.Snapshot

	// Get initial state
	if snap, err := w.source.Snapshot(ctx); err == nil {
		prev = &snap
		if !w.emit(ctx, diffStates(nil, prev)) {
			return ctx.Err()
		}
		if snap.Playback.State == core.StateStopped {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			snap, err := w.source.Snapshot(ctx)
			if err != nil {
				continue
			}
			curr := &snap

			if !w.emit(ctx, diffStates(prev, curr)) {
				return ctx.Err()
			}
			if curr.Playback.State == core.StateStopped {
				return nil
			}
			prev = curr
		}
	}
}

func (w *Watcher) emit(ctx context.Context, events []Event) bool {
	for _, e := range events {
		select {
		case w.events <- e:
		case <-ctx.Done():
			return false
		default:
			// Drop event if channel is full
		}
	}
	return true
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

// diffStates compares two snapshots and returns detected events.
func diffStates(prev, curr *session.Snapshot) []Event {
	if curr == nil {
		return nil
	}

	now := curr.Taken
	if now.IsZero() {
		now = time.Now()
	}
	event := func(t EventType) Event {
		return Event{Type: t, Timestamp: now, Previous: prev, Current: curr}
	}

	// First poll - no previous state
	if prev == nil {
		var events []Event
		if curr.Playback.HasSong() {
			events = append(events, event(EventSongChange))
		}
		if curr.Playback.State == core.StateStopped {
			events = append(events, event(EventStopped))
		}
		return events
	}

	var events []Event

	if songChanged(prev, curr) {
		switch {
		case !prev.Playback.HasSong() || !curr.Playback.HasSong():
			events = append(events, event(EventSongChange))
		case curr.Reason == session.ReasonCompleted:
			events = append(events, event(EventSongComplete))
		case curr.Reason == session.ReasonSkipped:
			events = append(events, event(EventSongSkip))
		default:
			events = append(events, event(EventSongChange))
		}
	}

	// Pause/Resume detection
	switch {
	case prev.Playback.State == core.StatePlaying && curr.Playback.State == core.StatePaused:
		events = append(events, event(EventPause))
	case prev.Playback.State == core.StatePaused && curr.Playback.State == core.StatePlaying:
		events = append(events, event(EventResume))
	}

	if prev.Playback.Volume != curr.Playback.Volume {
		events = append(events, event(EventVolumeChange))
	}
	if prev.Playback.Muted != curr.Playback.Muted {
		events = append(events, event(EventMuteChange))
	}
	if prev.Mode != curr.Mode {
		events = append(events, event(EventModeChange))
	}
	if prev.Playback.State != core.StateStopped && curr.Playback.State == core.StateStopped {
		events = append(events, event(EventStopped))
	}

	return events
}

// songChanged reports a new song start. Starting the same song again (repeat
// mode) shows up as a newer history entry.
func songChanged(prev, curr *session.Snapshot) bool {
	if prev.Playback.Current != curr.Playback.Current {
		return true
	}
	if !curr.Playback.HasSong() {
		return false
	}
	return latestStart(curr).After(latestStart(prev))
}

func latestStart(s *session.Snapshot) time.Time {
	if len(s.History) == 0 {
		return time.Time{}
	}
	return s.History[0].StartedAt
}
