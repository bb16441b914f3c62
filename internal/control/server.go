package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/metrics"
	"github.com/tessro/markov/internal/session"
)

// Server accepts control connections and forwards commands to a controller.
type Server struct {
	ctrl   session.Controller
	socket string
	log    zerolog.Logger

	mu    sync.Mutex
	ready chan struct{}
}

// NewServer creates a server that listens on socket once served.
func NewServer(ctrl session.Controller, socket string, logger zerolog.Logger) *Server {
	return &Server{
		ctrl:   ctrl,
		socket: socket,
		log:    logger,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the socket is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens until ctx is done. It satisfies suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socket), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := removeStale(s.socket); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", s.socket)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socket, err)
	}
	if err := os.Chmod(s.socket, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod %s: %w", s.socket, err)
	}
	s.mu.Lock()
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
	s.mu.Unlock()
	s.log.Info().Str("socket", s.socket).Msg("control socket listening")

	var (
		wg      sync.WaitGroup
		connsMu sync.Mutex
		conns   = make(map[net.Conn]struct{})
	)
	closeAll := func() {
		connsMu.Lock()
		for c := range conns {
			c.Close()
		}
		connsMu.Unlock()
	}
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			closeAll()
			wg.Wait()
			os.Remove(s.socket)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		connsMu.Lock()
		conns[conn] = struct{}{}
		connsMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
			connsMu.Lock()
			delete(conns, conn)
			connsMu.Unlock()
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	metrics.TrackControlConnection(true)
	defer metrics.TrackControlConnection(false)

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.dispatch(ctx, line)
		if err := enc.Encode(resp); err != nil {
			s.log.Debug().Err(err).Msg("control: write failed")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		err = fmt.Errorf("%w: %v", ErrBadRequest, err)
		metrics.RecordControlRequest("invalid", err)
		return Response{Error: err.Error(), Code: CodeBadRequest}
	}

	var (
		snap session.Snapshot
		err  error
	)
	if req.Command.Mutates() {
		snap, err = s.ctrl.Do(ctx, req.Command)
	} else {
		snap, err = s.ctrl.Snapshot(ctx)
	}
	metrics.RecordControlRequest(string(req.Command.Op), err)

	resp := Response{ID: req.ID}
	if err != nil {
		s.log.Debug().Err(err).Str("op", string(req.Command.Op)).Msg("control: command failed")
		resp.Error = err.Error()
		resp.Code = CodeFor(err)
		if errors.Is(err, session.ErrStopped) {
			latest, _ := s.ctrl.Snapshot(ctx)
			resp.Snapshot = &latest
		}
		return resp
	}
	resp.Snapshot = &snap
	return resp
}

// removeStale deletes a socket left behind by a crashed daemon. A live
// daemon on the same path is an error.
func removeStale(socket string) error {
	if _, err := os.Stat(socket); os.IsNotExist(err) {
		return nil
	}
	if conn, err := net.Dial("unix", socket); err == nil {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrDaemonRunning, socket)
	}
	return os.Remove(socket)
}

// ErrDaemonRunning is returned when another daemon owns the socket.
var ErrDaemonRunning = errors.New("a daemon is already listening")
