package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tessro/markov/internal/chain"
	"github.com/tessro/markov/internal/core"
)

func startLoop(t *testing.T, f *fixture, opts LoopOptions) (*Loop, func() error) {
	t.Helper()
	l := NewLoop(f.session, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	return l, func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("loop did not shut down")
			return nil
		}
	}
}

func TestLoopDoAndSnapshot(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "chain.db")
	l, stop := startLoop(t, f, LoopOptions{Store: f.store, StorePath: path, Poll: time.Hour})

	ctx := context.Background()
	snap, err := l.Do(ctx, Command{Op: OpAdd, Song: "A"})
	if err != nil {
		t.Fatalf("Do(add A) error = %v", err)
	}
	if snap.Playback.Current != "A" {
		t.Errorf("snapshot current = %q, want A", snap.Playback.Current)
	}
	if _, err := l.Do(ctx, Command{Op: OpAdd, Song: "B"}); err != nil {
		t.Fatalf("Do(add B) error = %v", err)
	}

	got, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got.Playback.Current != "B" || got.Playback.Previous != "A" {
		t.Errorf("Snapshot() playback = %+v", got.Playback)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}

	loaded, err := chain.Load(path, chain.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if w := loaded.Weight("A", "B"); w != 1 {
		t.Errorf("saved Weight(A, B) = %v, want 1", w)
	}
}

func TestLoopErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	l, stop := startLoop(t, f, LoopOptions{Poll: time.Hour})
	defer stop()

	_, err := l.Do(context.Background(), Command{Op: "bogus"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Do(bogus) error = %v, want ErrUnknownCommand", err)
	}
}

func TestLoopAutoplayAndPoll(t *testing.T) {
	f := newFixture(t, "A", "B")
	l, stop := startLoop(t, f, LoopOptions{Poll: 5 * time.Millisecond, Autoplay: true})
	defer stop()

	waitFor(t, func() bool { snap := l.Latest(); return snap.Playback.HasSong() })
	first := l.Latest().Playback.Current

	f.player.Finish()
	waitFor(t, func() bool { return len(l.Latest().History) == 2 })

	if prev := l.Latest().Playback.Previous; prev != first {
		t.Errorf("previous = %q, want %q", prev, first)
	}
}

func TestLoopStopped(t *testing.T) {
	f := newFixture(t)
	l, stop := startLoop(t, f, LoopOptions{Poll: time.Hour})
	defer stop()

	if _, err := l.Do(context.Background(), Command{Op: OpStop}); err != nil {
		t.Fatalf("Do(stop) error = %v", err)
	}
	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped() not closed after stop")
	}
	if l.Latest().Playback.State != core.StateStopped {
		t.Errorf("state = %s, want stopped", l.Latest().Playback.State)
	}
}

func TestLoopConcurrentReaders(t *testing.T) {
	f := newFixture(t)
	l, stop := startLoop(t, f, LoopOptions{Poll: time.Hour})
	defer stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Snapshot(ctx)
			}
		}()
	}
	for _, song := range []core.SongID{"A", "B", "C", "D"} {
		if _, err := l.Do(ctx, Command{Op: OpAdd, Song: song}); err != nil {
			t.Fatalf("Do(add) error = %v", err)
		}
	}
	wg.Wait()
	if l.Latest().Playback.Current != "D" {
		t.Errorf("current = %q, want D", l.Latest().Playback.Current)
	}
}

func TestLoopDoHonorsContext(t *testing.T) {
	f := newFixture(t)
	l := NewLoop(f.session, LoopOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Do(ctx, Command{Op: OpNext}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() without a running loop error = %v, want DeadlineExceeded", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
