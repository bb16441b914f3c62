package core

import (
	"testing"
	"time"
)

func TestSongIDTitle(t *testing.T) {
	tests := []struct {
		id   SongID
		want string
		dir  string
	}{
		{"Artist/Album/01 Song.mp3", "01 Song", "Artist/Album"},
		{"song.flac", "song", ""},
		{"noext", "noext", ""},
		{".hidden", ".hidden", ""},
	}
	for _, tt := range tests {
		if got := tt.id.Title(); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.id, got, tt.want)
		}
		if got := tt.id.Dir(); got != tt.dir {
			t.Errorf("Dir(%q) = %q, want %q", tt.id, got, tt.dir)
		}
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	if !h.IsEmpty() {
		t.Error("IsEmpty() = false for new history")
	}
	if h.Current() != nil {
		t.Error("Current() should be nil for empty history")
	}

	now := time.Now()
	for _, s := range []SongID{"a", "b", "c", "d"} {
		h.Push(s, now)
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.Current().Song != "d" {
		t.Errorf("Current() = %q, want %q", h.Current().Song, "d")
	}

	recent := h.Recent(2)
	if len(recent) != 2 || recent[0].Song != "d" || recent[1].Song != "c" {
		t.Errorf("Recent(2) = %+v, want [d c]", recent)
	}

	e, ok := h.Pop()
	if !ok || e.Song != "d" {
		t.Errorf("Pop() = %q, %v, want d, true", e.Song, ok)
	}
	if h.Current().Song != "c" {
		t.Errorf("Current() after Pop = %q, want c", h.Current().Song)
	}
}

func TestProgressPercent(t *testing.T) {
	var nilState *PlaybackState
	if nilState.ProgressPercent() != 0 {
		t.Error("nil state should report 0 progress")
	}

	s := &PlaybackState{Current: "a", Percent: 140}
	if s.ProgressPercent() != 100 {
		t.Errorf("ProgressPercent() = %v, want 100", s.ProgressPercent())
	}
	s.Percent = -3
	if s.ProgressPercent() != 0 {
		t.Errorf("ProgressPercent() = %v, want 0", s.ProgressPercent())
	}
}
