package core

import "time"

// HistoryEntry represents a song that was started during the session.
type HistoryEntry struct {
	Song      SongID    `json:"song"`
	StartedAt time.Time `json:"started_at"`
}

// History is a bounded list of recently started songs, newest last.
type History struct {
	Entries []HistoryEntry `json:"entries"`
	Limit   int            `json:"-"`
}

// NewHistory creates a history that keeps at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 50
	}
	return &History{Limit: limit}
}

// Push records a newly started song.
func (h *History) Push(song SongID, at time.Time) {
	h.Entries = append(h.Entries, HistoryEntry{Song: song, StartedAt: at})
	if h.Limit > 0 && len(h.Entries) > h.Limit {
		h.Entries = h.Entries[len(h.Entries)-h.Limit:]
	}
}

// Pop removes and returns the newest entry.
func (h *History) Pop() (HistoryEntry, bool) {
	if h == nil || len(h.Entries) == 0 {
		return HistoryEntry{}, false
	}
	last := h.Entries[len(h.Entries)-1]
	h.Entries = h.Entries[:len(h.Entries)-1]
	return last, true
}

// Current returns the newest entry, or nil if the history is empty.
func (h *History) Current() *HistoryEntry {
	if h == nil || len(h.Entries) == 0 {
		return nil
	}
	return &h.Entries[len(h.Entries)-1]
}

// Recent returns up to n songs, newest first.
func (h *History) Recent(n int) []HistoryEntry {
	if h == nil {
		return nil
	}
	if n <= 0 || n > len(h.Entries) {
		n = len(h.Entries)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(h.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.Entries[i])
	}
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Entries)
}

// IsEmpty returns true if nothing has been played.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}
