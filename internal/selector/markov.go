package selector

import (
	"context"
	"math"

	"github.com/tessro/markov/internal/core"
)

// Sigmoid squashes edge weights before they become probabilities so a single
// heavily reinforced edge never becomes certain.
type Sigmoid struct {
	Slope    float64
	Midpoint float64
}

// DefaultSigmoid returns the curve used when configuration leaves it unset.
func DefaultSigmoid() Sigmoid {
	return Sigmoid{Slope: 0.5, Midpoint: 3}
}

// Score maps a weight to (0, 1). It is strictly increasing for a positive slope.
func (s Sigmoid) Score(w float32) float64 {
	return 1 / (1 + math.Exp(-s.Slope*(float64(w)-s.Midpoint)))
}

// Candidate is one possible next song with its selection probability.
type Candidate struct {
	Song        core.SongID `json:"song"`
	Weight      float32     `json:"weight"`
	Score       float64     `json:"score"`
	Probability float64     `json:"probability"`
}

// Candidates returns the outgoing edges of current that are eligible for
// selection, in store order, with normalised probabilities. Zero-weight
// edges and tired targets are excluded.
func Candidates(chain Transitions, current core.SongID, tired func(core.SongID) bool, sig Sigmoid) []Candidate {
	if chain == nil || current.IsZero() {
		return nil
	}

	var (
		out   []Candidate
		total float64
	)
	for to, w := range chain.Outgoing(current) {
		if w <= 0 {
			continue
		}
		if tired != nil && tired(to) {
			continue
		}
		score := sig.Score(w)
		if score <= 0 || math.IsNaN(score) {
			continue
		}
		out = append(out, Candidate{Song: to, Weight: w, Score: score})
		total += score
	}
	for i := range out {
		out[i].Probability = out[i].Score / total
	}
	return out
}

// Markov samples the transition chain from the current song.
type Markov struct {
	Chain   Transitions
	Library core.Library
	Sigmoid Sigmoid
	Rand    Source
}

func (m *Markov) Name() string { return NameMarkov }

// Next draws a successor of st.Current. A song with no eligible successor
// (a sink, or every successor tired) falls back to a uniform library pick.
func (m *Markov) Next(ctx context.Context, st State) (core.SongID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cands := Candidates(m.Chain, st.Current, st.Tired, m.Sigmoid)
	if len(cands) == 0 {
		return uniform(ctx, m.Library, m.Rand, st)
	}
	return draw(cands, m.Rand), nil
}

// draw samples one candidate. Candidates with exactly equal scores form one
// bucket; the bucket is drawn by its total mass and the winner within it is
// chosen uniformly.
func draw(cands []Candidate, rnd Source) core.SongID {
	type bucket struct {
		score float64
		mass  float64
		songs []core.SongID
	}
	var buckets []*bucket
	index := make(map[float64]*bucket)
	for _, c := range cands {
		b, ok := index[c.Score]
		if !ok {
			b = &bucket{score: c.Score}
			index[c.Score] = b
			buckets = append(buckets, b)
		}
		b.mass += c.Probability
		b.songs = append(b.songs, c.Song)
	}

	r := rnd.Float64()
	chosen := buckets[len(buckets)-1]
	var acc float64
	for _, b := range buckets {
		acc += b.mass
		if r < acc {
			chosen = b
			break
		}
	}
	if len(chosen.songs) == 1 {
		return chosen.songs[0]
	}
	return chosen.songs[rnd.IntN(len(chosen.songs))]
}
