package chain

import (
	"math"
	"testing"

	"github.com/tessro/markov/internal/core"
)

func TestWeightMissingEdge(t *testing.T) {
	s := New(Options{})
	if w := s.Weight("a", "b"); w != 0 {
		t.Errorf("Weight() = %v, want 0", w)
	}
	if _, ok := s.Lookup("a", "b"); ok {
		t.Error("Lookup() reported a missing edge as present")
	}
	if s.Dirty() {
		t.Error("Dirty() = true for new store")
	}
}

func TestSetWeightClamps(t *testing.T) {
	s := New(Options{WeightMax: 10})

	tests := []struct {
		in   float32
		want float32
	}{
		{-50, 0},
		{0, 0},
		{3.5, 3.5},
		{10, 10},
		{1e9, 10},
		{float32(math.Inf(1)), 10},
		{float32(math.Inf(-1)), 0},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		s.SetWeight("a", "b", tt.in)
		if got := s.Weight("a", "b"); got != tt.want {
			t.Errorf("SetWeight(%v) stored %v, want %v", tt.in, got, tt.want)
		}
	}

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after repeated sets on one pair", s.Len())
	}
	if !s.Dirty() {
		t.Error("Dirty() = false after SetWeight")
	}
}

func TestDefaultWeightMax(t *testing.T) {
	s := New(Options{})
	if s.WeightMax() != DefaultWeightMax {
		t.Errorf("WeightMax() = %v, want %v", s.WeightMax(), DefaultWeightMax)
	}
}

func TestOutgoingIsStable(t *testing.T) {
	s := New(Options{})
	targets := []core.SongID{"d", "b", "z", "a", "c"}
	for i, to := range targets {
		s.SetWeight("x", to, float32(i+1))
	}
	// Updating an existing edge keeps its position.
	s.SetWeight("x", "b", 9)

	for round := 0; round < 3; round++ {
		var got []core.SongID
		for to := range s.Outgoing("x") {
			got = append(got, to)
		}
		if len(got) != len(targets) {
			t.Fatalf("Outgoing() yielded %d edges, want %d", len(got), len(targets))
		}
		for i := range targets {
			if got[i] != targets[i] {
				t.Fatalf("round %d: Outgoing() order = %v, want %v", round, got, targets)
			}
		}
	}

	if s.Degree("x") != 5 || s.Degree("nobody") != 0 {
		t.Errorf("Degree() = %d/%d, want 5/0", s.Degree("x"), s.Degree("nobody"))
	}
}

func TestOutgoingEarlyBreak(t *testing.T) {
	s := New(Options{})
	s.SetWeight("x", "a", 1)
	s.SetWeight("x", "b", 1)
	n := 0
	for range s.Outgoing("x") {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d times, want 1", n)
	}
}

func TestPrune(t *testing.T) {
	s := New(Options{})
	s.SetWeight("a", "b", 1)
	s.SetWeight("a", "c", 0)
	s.SetWeight("d", "e", 0)
	s.MarkClean()

	if n := s.Prune(); n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if !s.Dirty() {
		t.Error("Dirty() = false after pruning")
	}
	sources := s.Sources()
	if len(sources) != 1 || sources[0] != "a" {
		t.Errorf("Sources() = %v, want [a]", sources)
	}
	// Pruned edges can be recreated.
	s.SetWeight("a", "c", 2)
	if s.Weight("a", "c") != 2 || s.Len() != 2 {
		t.Errorf("recreated edge weight = %v, len = %d", s.Weight("a", "c"), s.Len())
	}
}

func TestEdges(t *testing.T) {
	s := New(Options{})
	s.SetWeight("a", "b", 1)
	s.SetWeight("b", "c", 2)
	s.SetWeight("a", "c", 3)

	got := map[[2]core.SongID]float32{}
	for e := range s.Edges() {
		got[[2]core.SongID{e.From, e.To}] = e.Weight
	}
	want := map[[2]core.SongID]float32{
		{"a", "b"}: 1,
		{"b", "c"}: 2,
		{"a", "c"}: 3,
	}
	if len(got) != len(want) {
		t.Fatalf("Edges() yielded %d edges, want %d", len(got), len(want))
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("edge %v = %v, want %v", k, got[k], w)
		}
	}
}
