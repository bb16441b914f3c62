// Package chain holds the transition store: the weighted, directed graph of
// song-to-song associations the selector walks.
package chain

import (
	"iter"
	"math"

	"github.com/tessro/markov/internal/core"
)

// DefaultWeightMax is the weight ceiling used when Options leaves it unset.
const DefaultWeightMax = 100

// Edge is an association from one song to a candidate next song.
type Edge struct {
	From   core.SongID `json:"song" toml:"song"`
	To     core.SongID `json:"next" toml:"next"`
	Weight float32     `json:"weight" toml:"weight"`
}

// Options configures a Store.
type Options struct {
	// WeightMax is the inclusive upper bound for every stored weight.
	WeightMax float32
}

func (o Options) weightMax() float32 {
	if o.WeightMax <= 0 || math.IsNaN(float64(o.WeightMax)) {
		return DefaultWeightMax
	}
	return o.WeightMax
}

// node is the outgoing adjacency of one song. Edges keep insertion order so
// enumeration is stable for the lifetime of the store.
type node struct {
	index map[core.SongID]int
	edges []target
}

type target struct {
	to     core.SongID
	weight float32
}

// Store maps each song to its outgoing weighted edges.
//
// A Store is not safe for concurrent use; the session loop is its only writer.
type Store struct {
	nodes     map[core.SongID]*node
	order     []core.SongID
	weightMax float32
	edges     int
	dirty     bool
}

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		nodes:     make(map[core.SongID]*node),
		weightMax: opts.weightMax(),
	}
}

// WeightMax returns the configured weight ceiling.
func (s *Store) WeightMax() float32 {
	return s.weightMax
}

// Weight returns the weight of from→to, or 0 if no edge exists.
func (s *Store) Weight(from, to core.SongID) float32 {
	w, _ := s.Lookup(from, to)
	return w
}

// Lookup returns the weight of from→to and whether the edge exists.
func (s *Store) Lookup(from, to core.SongID) (float32, bool) {
	n, ok := s.nodes[from]
	if !ok {
		return 0, false
	}
	i, ok := n.index[to]
	if !ok {
		return 0, false
	}
	return n.edges[i].weight, true
}

// SetWeight stores weight for from→to, clamped to [0, WeightMax], creating
// the edge if absent. It marks the store dirty.
func (s *Store) SetWeight(from, to core.SongID, weight float32) {
	weight = s.clamp(weight)

	n, ok := s.nodes[from]
	if !ok {
		n = &node{index: make(map[core.SongID]int)}
		s.nodes[from] = n
		s.order = append(s.order, from)
	}

	if i, ok := n.index[to]; ok {
		n.edges[i].weight = weight
	} else {
		n.index[to] = len(n.edges)
		n.edges = append(n.edges, target{to: to, weight: weight})
		s.edges++
	}
	s.dirty = true
}

func (s *Store) clamp(w float32) float32 {
	switch {
	case math.IsNaN(float64(w)):
		return 0
	case w < 0:
		return 0
	case w > s.weightMax:
		return s.weightMax
	}
	return w
}

// Outgoing yields the edges leaving from, in insertion order.
func (s *Store) Outgoing(from core.SongID) iter.Seq2[core.SongID, float32] {
	return func(yield func(core.SongID, float32) bool) {
		n, ok := s.nodes[from]
		if !ok {
			return
		}
		for _, e := range n.edges {
			if !yield(e.to, e.weight) {
				return
			}
		}
	}
}

// Degree returns the number of edges leaving from.
func (s *Store) Degree(from core.SongID) int {
	if n, ok := s.nodes[from]; ok {
		return len(n.edges)
	}
	return 0
}

// Edges yields every edge in the store.
func (s *Store) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, from := range s.order {
			n := s.nodes[from]
			for _, e := range n.edges {
				if !yield(Edge{From: from, To: e.to, Weight: e.weight}) {
					return
				}
			}
		}
	}
}

// Sources returns every song that has at least one outgoing edge.
func (s *Store) Sources() []core.SongID {
	out := make([]core.SongID, 0, len(s.order))
	for _, from := range s.order {
		if len(s.nodes[from].edges) > 0 {
			out = append(out, from)
		}
	}
	return out
}

// Len returns the number of edges.
func (s *Store) Len() int {
	return s.edges
}

// Prune removes zero-weight edges and returns how many were dropped.
func (s *Store) Prune() int {
	removed := 0
	order := s.order[:0]
	for _, from := range s.order {
		n := s.nodes[from]
		kept := n.edges[:0]
		for _, e := range n.edges {
			if e.weight == 0 {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.nodes, from)
			continue
		}
		n.edges = kept
		n.index = make(map[core.SongID]int, len(kept))
		for i, e := range kept {
			n.index[e.to] = i
		}
		order = append(order, from)
	}
	s.order = order
	s.edges -= removed
	if removed > 0 {
		s.dirty = true
	}
	return removed
}

// Dirty reports whether the store changed since it was loaded or last saved.
func (s *Store) Dirty() bool {
	return s.dirty
}

// MarkClean clears the dirty flag.
func (s *Store) MarkClean() {
	s.dirty = false
}
