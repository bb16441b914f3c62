package selector

import (
	"context"
	"slices"

	"github.com/tessro/markov/internal/core"
)

// Random picks uniformly from the library, ignoring the chain.
type Random struct {
	Library core.Library
	Rand    Source
}

func (r *Random) Name() string { return NameRandom }

func (r *Random) Next(ctx context.Context, st State) (core.SongID, error) {
	return uniform(ctx, r.Library, r.Rand, st)
}

// Shuffle walks a random permutation of the library and reshuffles once every
// song has been played. Not safe for concurrent use.
type Shuffle struct {
	library core.Library
	rand    Source
	deck    []core.SongID
}

// NewShuffle creates a shuffle strategy over lib.
func NewShuffle(lib core.Library, rnd Source) *Shuffle {
	return &Shuffle{library: lib, rand: rnd}
}

func (s *Shuffle) Name() string { return NameShuffle }

// Next deals the next card, skipping tired songs while untired ones remain.
func (s *Shuffle) Next(ctx context.Context, st State) (core.SongID, error) {
	if len(s.deck) == 0 {
		if err := s.deal(ctx, st.Current); err != nil {
			return "", err
		}
	}
	for i, song := range s.deck {
		if !st.tired(song) {
			s.deck = slices.Delete(s.deck, i, i+1)
			return song, nil
		}
	}
	song := s.deck[0]
	s.deck = s.deck[1:]
	return song, nil
}

// Remaining returns how many songs are left before the next reshuffle.
func (s *Shuffle) Remaining() int {
	return len(s.deck)
}

func (s *Shuffle) deal(ctx context.Context, current core.SongID) error {
	if s.library == nil {
		return ErrEmptyLibrary
	}
	songs, err := s.library.Songs(ctx)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return ErrEmptyLibrary
	}
	deck := slices.Clone(songs)
	for i := len(deck) - 1; i > 0; i-- {
		j := s.rand.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	// Avoid playing the same song twice across a reshuffle boundary.
	if len(deck) > 1 && deck[0] == current {
		deck[0], deck[len(deck)-1] = deck[len(deck)-1], deck[0]
	}
	s.deck = deck
	return nil
}

// Repeat keeps playing the current song until it is tired.
type Repeat struct {
	Base Strategy
}

func (r *Repeat) Name() string { return NameRepeat }

func (r *Repeat) Next(ctx context.Context, st State) (core.SongID, error) {
	if !st.Current.IsZero() && !st.tired(st.Current) {
		return st.Current, nil
	}
	return r.Base.Next(ctx, st)
}

// LoopBack bounces between the current and previous song. A tired previous
// song hands the pick to Base.
type LoopBack struct {
	Base Strategy
}

func (l *LoopBack) Name() string { return NameLoop }

func (l *LoopBack) Next(ctx context.Context, st State) (core.SongID, error) {
	if !st.Previous.IsZero() && !st.tired(st.Previous) {
		return st.Previous, nil
	}
	return l.Base.Next(ctx, st)
}
