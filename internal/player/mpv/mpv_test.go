package mpv

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/core"
)

// fakeMPV speaks enough of the IPC protocol to exercise the client.
type fakeMPV struct {
	t        *testing.T
	ln       net.Listener
	mu       sync.Mutex
	conn     net.Conn
	props    map[string]any
	commands [][]any
	ready    chan struct{}
	// failLoad makes loadfile fail after it is accepted, with this reason.
	failLoad string
}

func newFakeMPV(t *testing.T) (*fakeMPV, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s")

	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMPV{
		t:     t,
		ln:    ln,
		props: map[string]any{"pause": false, "mute": false, "volume": 100.0},
		ready: make(chan struct{}),
	}
	t.Cleanup(func() { ln.Close() })
	go f.serve()
	return f, sock
}

func (f *fakeMPV) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	close(f.ready)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		f.mu.Unlock()
		f.reply(req.RequestID, req.Command)
	}
}

func (f *fakeMPV) reply(id int64, cmd []any) {
	resp := map[string]any{"request_id": id, "error": "success"}
	name, _ := cmd[0].(string)

	f.mu.Lock()
	switch name {
	case "get_property":
		v, ok := f.props[cmd[1].(string)]
		if ok {
			resp["data"] = v
		} else {
			resp["error"] = "property unavailable"
		}
	case "set_property":
		f.props[cmd[1].(string)] = cmd[2]
	case "loadfile":
		f.props["percent-pos"] = 0.0
		f.props["path"] = cmd[1]
	case "bogus":
		resp["error"] = "invalid parameter"
	}
	f.mu.Unlock()

	f.mu.Lock()
	failLoad := f.failLoad
	f.mu.Unlock()

	f.send(resp)
	if name != "loadfile" {
		return
	}
	f.send(map[string]any{"event": "start-file"})
	f.send(map[string]any{"event": "property-change", "id": 1, "name": "path", "data": cmd[1]})
	if failLoad != "" {
		f.send(map[string]any{"event": "end-file", "reason": "error", "file_error": failLoad})
		f.send(map[string]any{"event": "property-change", "id": 1, "name": "path", "data": nil})
		f.send(map[string]any{"event": "idle"})
		return
	}
	f.send(map[string]any{"event": "file-loaded"})
}

// load plays path as another IPC client would, without going through the
// Player.
func (f *fakeMPV) load(path string) {
	f.send(map[string]any{"event": "end-file", "reason": "stop"})
	f.send(map[string]any{"event": "start-file"})
	f.send(map[string]any{"event": "property-change", "id": 1, "name": "path", "data": path})
	f.send(map[string]any{"event": "file-loaded"})
}

func (f *fakeMPV) send(v any) {
	b, _ := json.Marshal(v)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn.Write(append(b, '\n'))
}

func (f *fakeMPV) last() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commands[len(f.commands)-1]
}

func dialFake(t *testing.T) (*fakeMPV, *Player) {
	t.Helper()
	f, sock := newFakeMPV(t)
	p, err := Dial(context.Background(), sock, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	<-f.ready
	return f, p
}

func TestPlayAndFinish(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()

	if err := p.Play(ctx, "/music/a.flac"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if done, _ := p.Finished(ctx); done {
		t.Error("Finished() = true right after Play")
	}

	f.send(map[string]any{"event": "end-file", "reason": "stop"})
	f.send(map[string]any{"event": "end-file", "reason": "eof"})
	waitFor(t, func() bool {
		done, _ := p.Finished(ctx)
		return done
	})

	if err := p.Play(ctx, "/music/b.flac"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if done, _ := p.Finished(ctx); done {
		t.Error("Finished() should reset when a new file loads")
	}
}

func TestLoadFailureIsReported(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()
	f.mu.Lock()
	f.failLoad = "unrecognized file format"
	f.mu.Unlock()

	if err := p.Play(ctx, "/music/broken.mp3"); err != nil {
		t.Fatalf("Play() error = %v, want the request accepted", err)
	}
	waitFor(t, func() bool {
		_, err := p.Finished(ctx)
		return errors.Is(err, core.ErrUnplayable)
	})
	if path, _ := p.Loaded(ctx); path != "" {
		t.Errorf("Loaded() = %q for a file that never loaded", path)
	}

	f.mu.Lock()
	f.failLoad = ""
	f.mu.Unlock()
	if err := p.Play(ctx, "/music/ok.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitFor(t, func() bool {
		path, _ := p.Loaded(ctx)
		return path == "/music/ok.mp3"
	})
	if _, err := p.Finished(ctx); err != nil {
		t.Errorf("Finished() error = %v after a good load", err)
	}
}

func TestLoadedFollowsOtherClients(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()

	if path, _ := p.Loaded(ctx); path != "" {
		t.Errorf("Loaded() = %q before anything played", path)
	}
	p.Play(ctx, "/music/a.mp3")
	waitFor(t, func() bool {
		path, _ := p.Loaded(ctx)
		return path == "/music/a.mp3"
	})

	f.load("/music/b.mp3")
	waitFor(t, func() bool {
		path, _ := p.Loaded(ctx)
		return path == "/music/b.mp3"
	})
}

func TestObservesPath(t *testing.T) {
	f, p := dialFake(t)
	// Any reply means the observe request, sent first, was read.
	p.Paused(context.Background())

	f.mu.Lock()
	first := f.commands[0]
	f.mu.Unlock()
	if first[0] != "observe_property" || first[2] != "path" {
		t.Errorf("first command = %v, want observe_property path", first)
	}
}

func TestEndFileStopIsNotFinished(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()
	p.Play(ctx, "a")

	f.send(map[string]any{"event": "end-file", "reason": "stop"})
	// A follow-up request guarantees the event was read.
	p.Paused(ctx)
	if done, _ := p.Finished(ctx); done {
		t.Error("a stopped file should not count as finished")
	}
}

func TestProperties(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()

	if err := p.SetVolume(ctx, 130); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if got := f.last(); got[2] != 100.0 {
		t.Errorf("SetVolume sent %v, want clamped 100", got)
	}
	f.mu.Lock()
	f.props["volume"] = 42.6
	f.mu.Unlock()
	if v, err := p.Volume(ctx); err != nil || v != 43 {
		t.Errorf("Volume() = %d, %v; want 43", v, err)
	}

	p.SetPaused(ctx, true)
	if paused, _ := p.Paused(ctx); !paused {
		t.Error("Paused() = false after SetPaused(true)")
	}
	p.SetMuted(ctx, true)
	if muted, _ := p.Muted(ctx); !muted {
		t.Error("Muted() = false after SetMuted(true)")
	}
}

func TestPercentPosIdle(t *testing.T) {
	_, p := dialFake(t)
	pct, err := p.PercentPos(context.Background())
	if err != nil {
		t.Fatalf("PercentPos() error = %v", err)
	}
	if pct != 0 {
		t.Errorf("PercentPos() = %d, want 0", pct)
	}
}

func TestSeek(t *testing.T) {
	f, p := dialFake(t)
	ctx := context.Background()

	p.Seek(ctx, core.Seek{Seconds: -5})
	if got := f.last(); got[0] != "seek" || got[1] != -5.0 || got[2] != "relative" {
		t.Errorf("relative seek sent %v", got)
	}
	p.Seek(ctx, core.Seek{Seconds: 0, Absolute: true})
	if got := f.last(); got[2] != "absolute" {
		t.Errorf("absolute seek sent %v", got)
	}
	p.Seek(ctx, core.SeekEnd())
	if got := f.last(); got[1] != 100.0 || got[2] != "absolute-percent" {
		t.Errorf("seek to end sent %v, want 100 absolute-percent", got)
	}
}

func TestCommandError(t *testing.T) {
	_, p := dialFake(t)
	_, err := p.command(context.Background(), "bogus")
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("command() error = %v, want *CommandError", err)
	}
	if cerr.Message != "invalid parameter" {
		t.Errorf("Message = %q", cerr.Message)
	}
}

func TestServerGone(t *testing.T) {
	f, p := dialFake(t)
	f.mu.Lock()
	f.conn.Close()
	f.mu.Unlock()

	waitFor(t, func() bool {
		_, err := p.Finished(context.Background())
		return errors.Is(err, ErrNotRunning)
	})
	if err := p.Stop(context.Background()); err == nil {
		t.Error("Stop() after disconnect should fail")
	}
}

func TestCommandHonorsContext(t *testing.T) {
	dir, _ := os.MkdirTemp("", "mpv")
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "s")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(time.Second)
		}
	}()

	p, err := Dial(context.Background(), sock, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), Options{
		Binary: filepath.Join(t.TempDir(), "no-such-mpv"),
		Socket: filepath.Join(t.TempDir(), "s"),
	})
	if err == nil {
		t.Error("Start() with a missing binary should fail")
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
