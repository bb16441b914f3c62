package session

import (
	"time"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/selector"
)

// Snapshot is an immutable view of a session, safe to share across
// goroutines and to send over the control socket.
type Snapshot struct {
	Playback core.PlaybackState   `json:"playback"`
	Mode     string               `json:"mode"`
	Reason   Reason               `json:"reason"`
	Weight   float32              `json:"weight"`
	Next     []selector.Candidate `json:"next,omitempty"`
	History  []core.HistoryEntry  `json:"history,omitempty"`
	Tired    []TiredSong          `json:"tired,omitempty"`
	Taken    time.Time            `json:"taken"`
}

// TiredSong is a song under a cooldown.
type TiredSong struct {
	Song  core.SongID `json:"song"`
	Until time.Time   `json:"until"`
}

// SnapshotHistory is how many history entries a snapshot carries.
const SnapshotHistory = 20

// Snapshot captures the session state. It performs no player I/O.
func (s *Session) Snapshot() Snapshot {
	now := s.now()
	snap := Snapshot{
		Playback: core.PlaybackState{
			State:    s.state,
			Current:  s.current,
			Previous: s.previous,
			Volume:   s.volume,
			Muted:    s.muted,
			Percent:  s.percent,
		},
		Mode:    s.strategy.Name(),
		Reason:  s.reason,
		History: s.history.Recent(SnapshotHistory),
		Taken:   now,
	}
	if !s.previous.IsZero() && !s.current.IsZero() {
		snap.Weight, _ = s.chain.Lookup(s.previous, s.current)
	}
	snap.Next = selector.Candidates(s.chain, s.current, s.Tired, s.sigmoid)

	for _, song := range s.cooldowns.Active(now) {
		until, _ := s.cooldowns.Until(song)
		snap.Tired = append(snap.Tired, TiredSong{Song: song, Until: until})
	}
	return snap
}
