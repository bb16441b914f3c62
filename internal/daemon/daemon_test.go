package daemon

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/chain"
	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/player"
	"github.com/tessro/markov/internal/policy"
	"github.com/tessro/markov/internal/session"
)

type staticLibrary []core.SongID

func (l staticLibrary) Songs(ctx context.Context) ([]core.SongID, error) { return l, nil }
func (l staticLibrary) Path(id core.SongID) string                      { return string(id) }

func TestRunStopsWithSession(t *testing.T) {
	dir, err := os.MkdirTemp("", "daemon")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "d.sock")
	storePath := filepath.Join(dir, "chain.toml")

	store := chain.New(chain.Options{})
	s, err := session.New(session.Config{
		Chain:   store,
		Library: staticLibrary{"A", "B"},
		Player:  player.NewMemory(),
		Deltas:  policy.DefaultDeltas(),
		Rand:    rand.New(rand.NewPCG(2, 2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	loop := session.NewLoop(s, session.LoopOptions{Store: store, StorePath: storePath, Poll: time.Hour})
	d := New(Config{Loop: loop, Socket: socket, Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case <-d.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("daemon not ready")
	}

	client := control.NewClient(socket)
	ctx := context.Background()
	for _, song := range []core.SongID{"A", "B"} {
		if _, err := client.Do(ctx, session.Command{Op: session.OpAdd, Song: song}); err != nil {
			t.Fatalf("Do(add %s) error = %v", song, err)
		}
	}
	if _, err := client.Do(ctx, session.Command{Op: session.OpStop}); err != nil {
		t.Fatalf("Do(stop) error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit after stop")
	}

	loaded, err := chain.Load(storePath, chain.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if w := loaded.Weight("A", "B"); w != 1 {
		t.Errorf("saved Weight(A, B) = %v, want 1", w)
	}
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "markov_") {
		t.Error("/metrics does not expose markov collectors")
	}
}

type fakeHTTPServer struct {
	mu       sync.Mutex
	stop     chan struct{}
	listen   error
	shutdown bool
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listen != nil {
		return f.listen
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	close(f.stop)
	return nil
}

func TestHTTPServiceShutdown(t *testing.T) {
	fake := &fakeHTTPServer{stop: make(chan struct{})}
	svc := NewHTTPService(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !fake.shutdown {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServiceListenError(t *testing.T) {
	fake := &fakeHTTPServer{listen: errors.New("address in use")}
	err := NewHTTPService(fake, time.Second).Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Errorf("Serve() error = %v, want address in use", err)
	}
}
