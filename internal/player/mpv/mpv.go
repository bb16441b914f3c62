// Package mpv drives an mpv process over its JSON IPC socket.
package mpv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/core"
)

var (
	ErrClosed     = errors.New("mpv connection closed")
	ErrNotRunning = errors.New("mpv is not running")
)

const (
	defaultStartTimeout = 5 * time.Second
	errUnavailable      = "property unavailable"
)

// Options configure Start.
type Options struct {
	// Binary is the mpv executable. Defaults to "mpv" on PATH.
	Binary string
	// Socket is the IPC socket path mpv listens on.
	Socket string
	// StartTimeout bounds the wait for the socket to appear.
	StartTimeout time.Duration
	Logger       zerolog.Logger
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Reason    string          `json:"reason"`
	Name      string          `json:"name"`
	FileError string          `json:"file_error"`
}

// pathObserver is the observe_property id for the path property.
const pathObserver = 1

// Player is a core.Player backed by mpv.
type Player struct {
	conn net.Conn
	proc *exec.Cmd
	log  zerolog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[int64]chan message
	nextID  atomic.Int64

	finished atomic.Bool
	done     chan struct{}
	readErr  error

	// Guarded by mu. path follows mpv's path property and started is set
	// once the file has loaded. loadErr holds the reason playback failed.
	path    string
	started bool
	loadErr string
}

// Start launches mpv in idle mode and connects to its socket.
func Start(ctx context.Context, opts Options) (*Player, error) {
	if opts.Socket == "" {
		return nil, errors.New("mpv: no socket path")
	}
	binary := opts.Binary
	if binary == "" {
		binary = "mpv"
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	_ = os.Remove(opts.Socket)

	cmd := exec.Command(binary,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--input-ipc-server="+opts.Socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mpv: start %s: %w", binary, err)
	}

	deadline := time.Now().Add(opts.StartTimeout)
	for {
		p, err := Dial(ctx, opts.Socket, opts.Logger)
		if err == nil {
			p.proc = cmd
			return p, nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil, fmt.Errorf("mpv: waiting for %s: %w", opts.Socket, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Dial connects to an mpv instance that is already listening on socket.
func Dial(ctx context.Context, socket string, logger zerolog.Logger) (*Player, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, err
	}
	p := &Player{
		conn:    conn,
		log:     logger,
		pending: make(map[int64]chan message),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	if err := p.notify("observe_property", pathObserver, "path"); err != nil {
		conn.Close()
		<-p.done
		return nil, err
	}
	return p, nil
}

func (p *Player) readLoop() {
	defer close(p.done)
	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			p.log.Debug().Err(err).Msg("mpv: bad message")
			continue
		}
		if msg.Event != "" {
			p.handleEvent(msg)
			continue
		}
		p.mu.Lock()
		ch, ok := p.pending[msg.RequestID]
		delete(p.pending, msg.RequestID)
		p.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
	p.mu.Lock()
	p.readErr = scanner.Err()
	if p.readErr == nil {
		p.readErr = ErrClosed
	}
	p.mu.Unlock()
}

func (p *Player) handleEvent(msg message) {
	switch msg.Event {
	case "start-file":
		p.finished.Store(false)
		p.mu.Lock()
		p.started = false
		p.loadErr = ""
		p.mu.Unlock()
	case "file-loaded":
		p.mu.Lock()
		p.started = true
		p.mu.Unlock()
	case "property-change":
		if msg.Name != "path" {
			return
		}
		var path string
		if err := json.Unmarshal(msg.Data, &path); err != nil || path == "" {
			return
		}
		p.mu.Lock()
		p.path = path
		p.mu.Unlock()
	case "end-file":
		switch msg.Reason {
		case "eof":
			p.finished.Store(true)
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			p.mu.Lock()
			p.loadErr = reason
			p.mu.Unlock()
			p.log.Warn().Str("error", reason).Msg("mpv: file failed to play")
		}
		p.log.Debug().Str("reason", msg.Reason).Msg("mpv: end of file")
	}
}

// notify sends a command without waiting for its reply.
func (p *Player) notify(args ...any) error {
	line, err := json.Marshal(request{Command: args, RequestID: p.nextID.Add(1)})
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("mpv: write: %w", err)
	}
	return nil
}

// command sends one IPC command and waits for its reply.
func (p *Player) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	id := p.nextID.Add(1)
	ch := make(chan message, 1)

	p.mu.Lock()
	if p.readErr != nil {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.pending[id] = ch
	p.mu.Unlock()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		p.forget(id)
		return nil, err
	}
	p.writeMu.Lock()
	_, err = p.conn.Write(append(line, '\n'))
	p.writeMu.Unlock()
	if err != nil {
		p.forget(id)
		return nil, fmt.Errorf("mpv: write: %w", err)
	}

	select {
	case msg := <-ch:
		if msg.Error != "success" {
			return nil, &CommandError{Command: fmt.Sprint(args[0]), Message: msg.Error}
		}
		return msg.Data, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		p.forget(id)
		return nil, ctx.Err()
	}
}

func (p *Player) forget(id int64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// CommandError is an error reply from mpv.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv: %s: %s", e.Command, e.Message)
}

func (p *Player) getProperty(ctx context.Context, name string, v any) error {
	data, err := p.command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (p *Player) setProperty(ctx context.Context, name string, v any) error {
	_, err := p.command(ctx, "set_property", name, v)
	return err
}

// Play asks mpv to load path. mpv accepts the request before opening the
// file; Loaded and Finished report how the load went.
func (p *Player) Play(ctx context.Context, path string) error {
	p.finished.Store(false)
	p.mu.Lock()
	p.path = ""
	p.started = false
	p.loadErr = ""
	p.mu.Unlock()
	if _, err := p.command(ctx, "loadfile", path, "replace"); err != nil {
		return err
	}
	return p.setProperty(ctx, "pause", false)
}

// Loaded returns the file mpv is playing once it has loaded.
func (p *Player) Loaded(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return "", ErrNotRunning
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return "", nil
	}
	return p.path, nil
}

func (p *Player) Stop(ctx context.Context) error {
	_, err := p.command(ctx, "stop")
	return err
}

func (p *Player) Seek(ctx context.Context, s core.Seek) error {
	if s.End {
		_, err := p.command(ctx, "seek", 100, "absolute-percent")
		return err
	}
	mode := "relative"
	if s.Absolute {
		mode = "absolute"
	}
	_, err := p.command(ctx, "seek", s.Seconds, mode)
	return err
}

func (p *Player) Paused(ctx context.Context) (bool, error) {
	var v bool
	err := p.getProperty(ctx, "pause", &v)
	return v, err
}

func (p *Player) SetPaused(ctx context.Context, paused bool) error {
	return p.setProperty(ctx, "pause", paused)
}

func (p *Player) Muted(ctx context.Context) (bool, error) {
	var v bool
	err := p.getProperty(ctx, "mute", &v)
	return v, err
}

func (p *Player) SetMuted(ctx context.Context, muted bool) error {
	return p.setProperty(ctx, "mute", muted)
}

func (p *Player) Volume(ctx context.Context) (int, error) {
	var v float64
	if err := p.getProperty(ctx, "volume", &v); err != nil {
		return 0, err
	}
	return int(v + 0.5), nil
}

func (p *Player) SetVolume(ctx context.Context, percent int) error {
	return p.setProperty(ctx, "volume", max(0, min(100, percent)))
}

// PercentPos returns 0 while nothing is loaded.
func (p *Player) PercentPos(ctx context.Context) (int, error) {
	var v float64
	err := p.getProperty(ctx, "percent-pos", &v)
	var cerr *CommandError
	if errors.As(err, &cerr) && cerr.Message == errUnavailable {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// Finished reports whether the last loaded file reached its end. A file mpv
// could not open yields an error wrapping core.ErrUnplayable until the next
// Play.
func (p *Player) Finished(ctx context.Context) (bool, error) {
	select {
	case <-p.done:
		return false, ErrNotRunning
	default:
	}
	p.mu.Lock()
	loadErr := p.loadErr
	p.mu.Unlock()
	if loadErr != "" {
		return false, fmt.Errorf("mpv: %w: %s", core.ErrUnplayable, loadErr)
	}
	return p.finished.Load(), nil
}

// Close disconnects. An mpv process started by Start is told to quit and
// reaped.
func (p *Player) Close() error {
	if p.proc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, _ = p.command(ctx, "quit")
		cancel()
	}
	err := p.conn.Close()
	<-p.done
	if p.proc != nil {
		_ = p.proc.Wait()
	}
	return err
}

var (
	_ core.Player = (*Player)(nil)
	_ core.Loader = (*Player)(nil)
)
