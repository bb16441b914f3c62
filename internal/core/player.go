package core

import (
	"context"
	"errors"
)

// ErrUnplayable is reported by Finished when a song accepted by Play could
// not be played.
var ErrUnplayable = errors.New("song could not be played")

// Seek describes a position change within the current song.
// Absolute offsets are seconds from the start; negative absolute offsets
// count back from the end. End runs the song out, so it counts as finished.
type Seek struct {
	Seconds  float64 `json:"seconds"`
	Absolute bool    `json:"absolute,omitempty"`
	End      bool    `json:"end,omitempty"`
}

// SeekEnd skips to the end of the current song.
func SeekEnd() Seek {
	return Seek{Absolute: true, End: true}
}

// Player defines the playback backend the session drives.
type Player interface {
	// Playback control
	Play(ctx context.Context, path string) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, s Seek) error

	// Pause and mute
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
	Muted(ctx context.Context) (bool, error)
	SetMuted(ctx context.Context, muted bool) error

	// Volume control (0-100)
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, percent int) error

	// State queries
	PercentPos(ctx context.Context) (int, error)
	// Finished reports whether the last started song played to its end.
	Finished(ctx context.Context) (bool, error)

	Close() error
}

// Loader is implemented by players that open files asynchronously. A
// successful Play only means the request was accepted.
type Loader interface {
	// Loaded returns the path of the file the player has actually started,
	// or "" while nothing has started since the last Play.
	Loaded(ctx context.Context) (string, error)
}

// Library enumerates the playable songs under a library root.
type Library interface {
	Songs(ctx context.Context) ([]SongID, error)
	// Path resolves an identifier to a filesystem path the player can open.
	Path(id SongID) string
}

// Resolver maps a player path back to a library song.
type Resolver interface {
	Song(path string) (SongID, bool)
}
