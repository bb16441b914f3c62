package core

// PlayState is the lifecycle state of a listening session.
type PlayState string

const (
	StateIdle    PlayState = "idle"
	StatePlaying PlayState = "playing"
	StatePaused  PlayState = "paused"
	StateStopped PlayState = "stopped"
)

// PlaybackState represents the current playback state as seen by a UI.
type PlaybackState struct {
	State    PlayState `json:"state"`
	Current  SongID    `json:"current,omitempty"`
	Previous SongID    `json:"previous,omitempty"`
	Volume   int       `json:"volume"`
	Muted    bool      `json:"muted"`
	Percent  int       `json:"percent"`
}

// HasSong returns true if there is a current song.
func (s *PlaybackState) HasSong() bool {
	return s != nil && s.Current != ""
}

// IsPlaying returns true if a song is playing and not paused.
func (s *PlaybackState) IsPlaying() bool {
	return s != nil && s.State == StatePlaying
}

// ProgressPercent returns playback progress clamped to 0-100.
func (s *PlaybackState) ProgressPercent() float64 {
	if s == nil || s.Current == "" {
		return 0
	}
	p := s.Percent
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return float64(p)
}
