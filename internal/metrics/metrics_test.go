package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSelection(t *testing.T) {
	chain := Selections.WithLabelValues("markov", "chain")
	fallback := Selections.WithLabelValues("markov", "fallback")
	failed := Selections.WithLabelValues("markov", "error")

	c0, f0, e0 := testutil.ToFloat64(chain), testutil.ToFloat64(fallback), testutil.ToFloat64(failed)

	RecordSelection("markov", false, nil)
	RecordSelection("markov", true, nil)
	RecordSelection("markov", true, errors.New("empty"))

	if got := testutil.ToFloat64(chain) - c0; got != 1 {
		t.Errorf("chain selections delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(fallback) - f0; got != 1 {
		t.Errorf("fallback selections delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - e0; got != 1 {
		t.Errorf("error selections delta = %v, want 1", got)
	}
}

func TestRecordFlush(t *testing.T) {
	errs := testutil.ToFloat64(FlushErrors)

	RecordFlush(5*time.Millisecond, 42, nil)
	if got := testutil.ToFloat64(StoreEdges); got != 42 {
		t.Errorf("StoreEdges = %v, want 42", got)
	}

	RecordFlush(time.Millisecond, 7, errors.New("disk full"))
	if got := testutil.ToFloat64(FlushErrors) - errs; got != 1 {
		t.Errorf("FlushErrors delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(StoreEdges); got != 42 {
		t.Errorf("StoreEdges = %v after failed flush, want 42", got)
	}
}

func TestRecordControlRequest(t *testing.T) {
	ok := ControlRequests.WithLabelValues("next", "ok")
	bad := ControlRequests.WithLabelValues("next", "error")
	o0, b0 := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	RecordControlRequest("next", nil)
	RecordControlRequest("next", errors.New("stopped"))

	if got := testutil.ToFloat64(ok) - o0; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(bad) - b0; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestTrackControlConnection(t *testing.T) {
	start := testutil.ToFloat64(ControlConnections)
	TrackControlConnection(true)
	TrackControlConnection(true)
	TrackControlConnection(false)
	if got := testutil.ToFloat64(ControlConnections) - start; got != 1 {
		t.Errorf("ControlConnections delta = %v, want 1", got)
	}
}
