package policy

import (
	"testing"
	"time"
)

func TestApply(t *testing.T) {
	d := Deltas{Base: 0.5, Reinforce: 1, Like: 2, Dislike: 1.5}

	tests := []struct {
		event   Event
		current float32
		want    float32
	}{
		{EventSequence, 0, 1},
		{EventSequence, 2.5, 3.5},
		{EventLike, 1, 3},
		{EventDislike, 3, 1.5},
		{EventDislike, 1, 0},
		{EventDislike, 0, 0},
		{EventTired, 4, 4},
	}
	for _, tt := range tests {
		if got := Apply(tt.event, tt.current, d); got != tt.want {
			t.Errorf("Apply(%s, %v) = %v, want %v", tt.event, tt.current, got, tt.want)
		}
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	d := DefaultDeltas()
	for i := 0; i < 100; i++ {
		if Apply(EventLike, 3, d) != Apply(EventLike, 3, d) {
			t.Fatal("Apply() returned different results for the same input")
		}
	}
}

func TestLikeMonotonic(t *testing.T) {
	d := DefaultDeltas()
	w := float32(0)
	for i := 0; i < 50; i++ {
		next := Apply(EventLike, w, d)
		if next < w {
			t.Fatalf("like decreased weight: %v -> %v", w, next)
		}
		w = next
	}
}

func TestObserved(t *testing.T) {
	d := Deltas{Base: 0.25}
	if got := Observed(7, false, d); got != 0.25 {
		t.Errorf("Observed(missing) = %v, want 0.25", got)
	}
	if got := Observed(7, true, d); got != 7 {
		t.Errorf("Observed(existing) = %v, want 7", got)
	}
}

func TestChangesWeight(t *testing.T) {
	if ChangesWeight(EventTired) {
		t.Error("tired must not change weights")
	}
	for _, e := range []Event{EventSequence, EventLike, EventDislike} {
		if !ChangesWeight(e) {
			t.Errorf("%s should change weights", e)
		}
	}
}

func TestEventText(t *testing.T) {
	for e, name := range eventNames {
		b, err := e.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", e, err)
		}
		if string(b) != name {
			t.Errorf("MarshalText(%d) = %q, want %q", e, b, name)
		}
		var back Event
		if err := back.UnmarshalText([]byte(name)); err != nil || back != e {
			t.Errorf("UnmarshalText(%q) = %v, %v", name, back, err)
		}
	}
	if _, err := ParseEvent("meh"); err == nil {
		t.Error("ParseEvent(meh) should fail")
	}
	if e, err := ParseEvent("LIKE"); err != nil || e != EventLike {
		t.Errorf("ParseEvent(LIKE) = %v, %v", e, err)
	}
}

func TestCooldowns(t *testing.T) {
	c := NewCooldowns(10 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if c.Tired("a", now) {
		t.Error("unmarked song reported tired")
	}

	c.Mark("a", now)
	c.Mark("b", now.Add(5*time.Minute))

	if !c.Tired("a", now.Add(9*time.Minute)) {
		t.Error("song should still be tired inside the window")
	}
	active := c.Active(now.Add(9 * time.Minute))
	if len(active) != 2 || active[0] != "a" || active[1] != "b" {
		t.Errorf("Active() = %v, want [a b]", active)
	}

	if c.Tired("a", now.Add(10*time.Minute)) {
		t.Error("song should not be tired once the window lapses")
	}
	if _, ok := c.Until("a"); ok {
		t.Error("expired mark should be dropped")
	}
	if !c.Tired("b", now.Add(10*time.Minute)) {
		t.Error("b was marked later and should still be tired")
	}

	c.Clear("b")
	if c.Tired("b", now) {
		t.Error("Clear() did not lift the suppression")
	}
}

func TestCooldownsRemark(t *testing.T) {
	c := NewCooldowns(time.Minute)
	now := time.Now()
	c.Mark("a", now)
	c.Mark("a", now.Add(50*time.Second))
	if !c.Tired("a", now.Add(90*time.Second)) {
		t.Error("re-marking should restart the window")
	}
}

func TestCooldownsDefaultWindow(t *testing.T) {
	if w := NewCooldowns(0).Window(); w != DefaultCooldown {
		t.Errorf("Window() = %v, want %v", w, DefaultCooldown)
	}
}
