// Package selector picks the next song to play.
//
// The primary strategy samples the learned transition chain; the others
// (random, shuffle, repeat, loop) share the same interface so the session can
// swap them at runtime.
package selector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/tessro/markov/internal/core"
)

// ErrEmptyLibrary is returned when there is nothing to play.
var ErrEmptyLibrary = errors.New("library is empty")

// Strategy names accepted by New.
const (
	NameMarkov  = "markov"
	NameRandom  = "random"
	NameShuffle = "shuffle"
	NameRepeat  = "repeat"
	NameLoop    = "loop"
)

// Names lists every strategy in display order.
var Names = []string{NameMarkov, NameShuffle, NameRandom, NameRepeat, NameLoop}

// Source is the uniform random source used for every draw.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// NewSource returns a PCG-backed source. A zero seed seeds from the clock.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Transitions is the read side of the transition store.
type Transitions interface {
	Outgoing(from core.SongID) iter.Seq2[core.SongID, float32]
}

// State is what a strategy sees when asked for the next song.
type State struct {
	Current  core.SongID
	Previous core.SongID
	// Tired reports whether a song is under a cooldown. Nil means none are.
	Tired func(core.SongID) bool
}

func (s State) tired(id core.SongID) bool {
	return s.Tired != nil && s.Tired(id)
}

// Strategy produces the next song for a session.
type Strategy interface {
	Name() string
	Next(ctx context.Context, st State) (core.SongID, error)
}

// Deps are the collaborators a strategy may need.
type Deps struct {
	Chain   Transitions
	Library core.Library
	Sigmoid Sigmoid
	Rand    Source
}

// New returns the strategy called name. Repeat and loop fall back to the
// markov strategy when they have nothing to return.
func New(name string, d Deps) (Strategy, error) {
	if d.Rand == nil {
		d.Rand = NewSource(0)
	}
	if d.Sigmoid == (Sigmoid{}) {
		d.Sigmoid = DefaultSigmoid()
	}
	markov := &Markov{Chain: d.Chain, Library: d.Library, Sigmoid: d.Sigmoid, Rand: d.Rand}

	switch strings.ToLower(name) {
	case NameMarkov, "":
		return markov, nil
	case NameRandom:
		return &Random{Library: d.Library, Rand: d.Rand}, nil
	case NameShuffle:
		return NewShuffle(d.Library, d.Rand), nil
	case NameRepeat:
		return &Repeat{Base: markov}, nil
	case NameLoop:
		return &LoopBack{Base: markov}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s (must be one of %s)", name, strings.Join(Names, ", "))
	}
}

// Valid reports whether name is a known strategy.
func Valid(name string) bool {
	for _, n := range Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// uniform picks any library song, preferring songs that are not tired. When
// every song is tired it picks among all of them.
func uniform(ctx context.Context, lib core.Library, rnd Source, st State) (core.SongID, error) {
	if lib == nil {
		return "", ErrEmptyLibrary
	}
	songs, err := lib.Songs(ctx)
	if err != nil {
		return "", fmt.Errorf("list library: %w", err)
	}
	if len(songs) == 0 {
		return "", ErrEmptyLibrary
	}

	fresh := make([]core.SongID, 0, len(songs))
	for _, s := range songs {
		if !st.tired(s) {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		fresh = songs
	}
	return fresh[rnd.IntN(len(fresh))], nil
}
