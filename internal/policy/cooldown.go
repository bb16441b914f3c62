package policy

import (
	"slices"
	"time"

	"github.com/tessro/markov/internal/core"
)

// DefaultCooldown is how long a song stays suppressed after a tired mark.
const DefaultCooldown = 2 * time.Hour

// Cooldowns tracks songs the listener is tired of. The state is ephemeral:
// it lives only as long as the session and never touches stored weights.
type Cooldowns struct {
	window time.Duration
	until  map[core.SongID]time.Time
}

// NewCooldowns creates a tracker that suppresses songs for window.
func NewCooldowns(window time.Duration) *Cooldowns {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldowns{
		window: window,
		until:  make(map[core.SongID]time.Time),
	}
}

// Window returns the suppression duration.
func (c *Cooldowns) Window() time.Duration {
	return c.window
}

// Mark suppresses song until now+window. Marking again restarts the window.
func (c *Cooldowns) Mark(song core.SongID, now time.Time) {
	c.until[song] = now.Add(c.window)
}

// Clear lifts the suppression on song.
func (c *Cooldowns) Clear(song core.SongID) {
	delete(c.until, song)
}

// Tired reports whether song is suppressed at now. Expired marks are dropped.
func (c *Cooldowns) Tired(song core.SongID, now time.Time) bool {
	until, ok := c.until[song]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(c.until, song)
		return false
	}
	return true
}

// Active returns the suppressed songs at now, sorted.
func (c *Cooldowns) Active(now time.Time) []core.SongID {
	var out []core.SongID
	for song := range c.until {
		if c.Tired(song, now) {
			out = append(out, song)
		}
	}
	slices.Sort(out)
	return out
}

// Until returns when the suppression on song ends.
func (c *Cooldowns) Until(song core.SongID) (time.Time, bool) {
	t, ok := c.until[song]
	return t, ok
}
