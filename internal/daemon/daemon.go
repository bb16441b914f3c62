// Package daemon runs a session in the background under a supervisor, with a
// control socket and an optional metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/logging"
	"github.com/tessro/markov/internal/session"
)

// Config wires a daemon.
type Config struct {
	Loop   *session.Loop
	Socket string
	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr     string
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// Daemon supervises the session loop and its servers.
type Daemon struct {
	root   *suture.Supervisor
	loop   *session.Loop
	server *control.Server
	log    zerolog.Logger
}

// New builds the supervisor tree. Nothing runs until Run.
func New(cfg Config) *Daemon {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger(cfg.Logger)}).MustHook()

	root := suture.New("markov", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   5 * time.Second,
		Timeout:          cfg.ShutdownTimeout,
	})

	server := control.NewServer(cfg.Loop, cfg.Socket, cfg.Logger.With().Str("component", "control").Logger())
	root.Add(cfg.Loop)
	root.Add(server)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		root.Add(NewHTTPService(srv, cfg.ShutdownTimeout))
	}

	return &Daemon{root: root, loop: cfg.Loop, server: server, log: cfg.Logger}
}

// Ready is closed once the control socket accepts connections.
func (d *Daemon) Ready() <-chan struct{} {
	return d.server.Ready()
}

// Run serves until ctx is done or the session is stopped. The store is saved
// on the way out; a failed save is returned.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.loop.Stopped():
			d.log.Info().Msg("session stopped, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := d.root.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if ferr := d.loop.Flush(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

// Handler serves Prometheus metrics and a liveness check.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}
