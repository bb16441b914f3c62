package session

import (
	"context"
	"fmt"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/policy"
)

// Op names a session command.
type Op string

const (
	OpStatus      Op = "status"
	OpNext        Op = "next"
	OpPrev        Op = "prev"
	OpPause       Op = "pause"
	OpResume      Op = "resume"
	OpTogglePause Op = "toggle-pause"
	OpStop        Op = "stop"
	OpLike        Op = "like"
	OpDislike     Op = "dislike"
	OpTired       Op = "tired"
	OpRandom      Op = "random"
	OpAdd         Op = "add"
	OpMode        Op = "mode"
	OpVolume      Op = "volume"
	OpVolumeStep  Op = "volume-step"
	OpMute        Op = "mute"
	OpSeek        Op = "seek"
	OpSeekStep    Op = "seek-step"
)

// Command is one UI or control-plane request against a session. Value is
// the volume for OpVolume and the step count for OpVolumeStep and OpSeekStep.
type Command struct {
	Op    Op          `json:"op"`
	Song  core.SongID `json:"song,omitempty"`
	Mode  string      `json:"mode,omitempty"`
	Value int         `json:"value,omitempty"`
	Seek  *core.Seek  `json:"seek,omitempty"`
}

// Mutates reports whether the command changes session state.
func (c Command) Mutates() bool {
	return c.Op != OpStatus
}

// Apply runs cmd against the session.
func (s *Session) Apply(ctx context.Context, cmd Command) error {
	switch cmd.Op {
	case OpStatus:
		return nil
	case OpNext:
		return s.Advance(ctx, s.skipReason())
	case OpPrev:
		return s.GoBack(ctx)
	case OpPause:
		return s.SetPaused(ctx, true)
	case OpResume:
		return s.SetPaused(ctx, false)
	case OpTogglePause:
		return s.TogglePause(ctx)
	case OpStop:
		return s.Stop(ctx)
	case OpLike:
		return s.Feedback(policy.EventLike)
	case OpDislike:
		return s.Feedback(policy.EventDislike)
	case OpTired:
		return s.Feedback(policy.EventTired)
	case OpRandom:
		return s.Random(ctx)
	case OpAdd:
		return s.PlaySong(ctx, cmd.Song)
	case OpMode:
		return s.SetMode(cmd.Mode)
	case OpVolume:
		return s.SetVolume(ctx, cmd.Value)
	case OpVolumeStep:
		return s.VolumeBy(ctx, cmd.Value)
	case OpMute:
		return s.ToggleMute(ctx)
	case OpSeek:
		if cmd.Seek == nil {
			return fmt.Errorf("seek: missing position")
		}
		return s.Seek(ctx, *cmd.Seek)
	case OpSeekStep:
		return s.SeekBy(ctx, cmd.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Op)
	}
}

// skipReason is Initial when nothing has played yet, so the first "next"
// starts the session.
func (s *Session) skipReason() Reason {
	if s.current.IsZero() {
		return ReasonInitial
	}
	return ReasonSkipped
}
