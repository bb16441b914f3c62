// Package policy turns listening events into edge weight changes.
//
// Everything here is a pure function of its inputs; applying the result to a
// transition store is the caller's job.
package policy

import (
	"fmt"
	"strings"
)

// Event is a signal that changes how strongly one song leads to another.
type Event int

const (
	// EventSequence: the next song followed the previous one in normal forward playback.
	EventSequence Event = iota
	// EventLike: explicit positive feedback on the current transition.
	EventLike
	// EventDislike: explicit negative feedback on the current transition.
	EventDislike
	// EventTired: temporary suppression of the current song; never changes weights.
	EventTired
)

var eventNames = map[Event]string{
	EventSequence: "sequence",
	EventLike:     "like",
	EventDislike:  "dislike",
	EventTired:    "tired",
}

func (e Event) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ParseEvent parses an event name.
func ParseEvent(s string) (Event, error) {
	for e, name := range eventNames {
		if strings.EqualFold(s, name) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown event: %s (must be sequence, like, dislike, or tired)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	if _, ok := eventNames[e]; !ok {
		return nil, fmt.Errorf("unknown event %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(b []byte) error {
	v, err := ParseEvent(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Deltas are the tunable weight increments.
type Deltas struct {
	// Base is the weight an edge starts from the first time it is observed.
	Base      float32
	Reinforce float32
	Like      float32
	Dislike   float32
}

// DefaultDeltas returns the deltas used when configuration leaves them unset.
func DefaultDeltas() Deltas {
	return Deltas{
		Base:      0,
		Reinforce: 1,
		Like:      2,
		Dislike:   2,
	}
}

// Observed returns the weight an update starts from: the stored weight when
// the edge exists, Base otherwise.
func Observed(current float32, exists bool, d Deltas) float32 {
	if !exists {
		return d.Base
	}
	return current
}

// Apply returns the weight after event. Results are never negative; the
// upper bound is enforced by the store.
func Apply(event Event, current float32, d Deltas) float32 {
	switch event {
	case EventSequence:
		return nonNegative(current + d.Reinforce)
	case EventLike:
		return nonNegative(current + d.Like)
	case EventDislike:
		return nonNegative(current - d.Dislike)
	default:
		return current
	}
}

// ChangesWeight reports whether event mutates persisted weights at all.
func ChangesWeight(event Event) bool {
	return event != EventTired
}

func nonNegative(w float32) float32 {
	if w < 0 || w != w {
		return 0
	}
	return w
}
