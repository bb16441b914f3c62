package session

import "fmt"

// Reason records why the session moved to a new song.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonInitial: the first song of a session.
	ReasonInitial
	// ReasonCompleted: the previous song played to its end.
	ReasonCompleted
	// ReasonSkipped: the listener asked for the next song early.
	ReasonSkipped
	// ReasonManual: the listener picked the song.
	ReasonManual
	// ReasonRandom: a one-shot random jump.
	ReasonRandom
	// ReasonPrevious: navigation back through history.
	ReasonPrevious
	// ReasonObserved: the player reported a song the session did not start.
	ReasonObserved
)

var reasonNames = [...]string{
	ReasonNone:      "",
	ReasonInitial:   "initial",
	ReasonCompleted: "completed",
	ReasonSkipped:   "skipped",
	ReasonManual:    "manual",
	ReasonRandom:    "random",
	ReasonPrevious:  "previous",
	ReasonObserved:  "observed",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Reinforces reports whether entering a song for this reason counts as
// forward playback.
func (r Reason) Reinforces() bool {
	switch r {
	case ReasonInitial, ReasonCompleted, ReasonManual, ReasonObserved:
		return true
	default:
		return false
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(b []byte) error {
	for i, name := range reasonNames {
		if name == string(b) {
			*r = Reason(i)
			return nil
		}
	}
	return fmt.Errorf("unknown reason: %s", b)
}
