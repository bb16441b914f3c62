package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/metrics"
)

// Persister is the save side of the transition store.
type Persister interface {
	Dirty() bool
	Len() int
	Save(path string) error
}

// Controller is anything that can run session commands: the in-process Loop
// or a client talking to a daemon.
type Controller interface {
	Do(ctx context.Context, cmd Command) (Snapshot, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// LoopOptions configure a Loop.
type LoopOptions struct {
	Store     Persister
	StorePath string
	// Poll is how often the player is asked whether the song finished.
	Poll time.Duration
	// Flush is how often a dirty store is saved. Zero saves only on shutdown.
	Flush time.Duration
	// Autoplay starts the first song as soon as the loop runs.
	Autoplay bool
	Logger   zerolog.Logger
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan error
}

// Loop owns a Session on a single goroutine. Commands are queued with Do;
// readers get the latest snapshot without waiting for the writer.
type Loop struct {
	session *Session
	opts    LoopOptions
	log     zerolog.Logger

	requests chan request
	snap     atomic.Pointer[Snapshot]

	stopOnce sync.Once
	stopped  chan struct{}
	started  atomic.Bool
}

// NewLoop wraps s.
func NewLoop(s *Session, opts LoopOptions) *Loop {
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	l := &Loop{
		session:  s,
		opts:     opts,
		log:      opts.Logger,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	l.publish()
	return l
}

// Stopped is closed once the session has been stopped.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

// Latest returns the most recent snapshot.
func (l *Loop) Latest() Snapshot {
	return *l.snap.Load()
}

// Snapshot implements Controller. It never blocks on the writer.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	return l.Latest(), nil
}

// Do queues cmd and waits for it to run. The returned snapshot reflects the
// state right after the command.
func (l *Loop) Do(ctx context.Context, cmd Command) (Snapshot, error) {
	if !cmd.Mutates() {
		return l.Latest(), nil
	}
	req := request{ctx: ctx, cmd: cmd, reply: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case err := <-req.reply:
		return l.Latest(), err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Serve runs the loop until ctx is done, then saves the store. It satisfies
// suture.Service.
func (l *Loop) Serve(ctx context.Context) error {
	poll := time.NewTicker(l.opts.Poll)
	defer poll.Stop()

	var flushC <-chan time.Time
	if l.opts.Flush > 0 {
		flush := time.NewTicker(l.opts.Flush)
		defer flush.Stop()
		flushC = flush.C
	}

	if l.opts.Autoplay && l.started.CompareAndSwap(false, true) && l.session.Current().IsZero() {
		if err := l.session.Advance(ctx, ReasonInitial); err != nil {
			l.log.Error().Err(err).Msg("could not start playback")
		}
		l.publish()
	}

	for {
		select {
		case <-ctx.Done():
			if err := l.Flush(); err != nil {
				l.log.Error().Err(err).Str("path", l.opts.StorePath).Msg("save on shutdown failed")
				return errors.Join(ctx.Err(), err)
			}
			return ctx.Err()

		case req := <-l.requests:
			req.reply <- l.session.Apply(req.ctx, req.cmd)
			l.publish()

		case <-poll.C:
			if err := l.session.Tick(ctx); err != nil {
				l.log.Warn().Err(err).Msg("tick failed")
			}
			l.publish()

		case <-flushC:
			if err := l.Flush(); err != nil {
				l.log.Error().Err(err).Msg("periodic save failed")
			}
		}
	}
}

// Flush saves the store if it has unsaved changes. Only the loop goroutine
// (or a caller that owns the session exclusively) may call it.
func (l *Loop) Flush() error {
	if l.opts.Store == nil || l.opts.StorePath == "" || !l.opts.Store.Dirty() {
		return nil
	}
	start := time.Now()
	err := l.opts.Store.Save(l.opts.StorePath)
	metrics.RecordFlush(time.Since(start), l.opts.Store.Len(), err)
	if err != nil {
		return err
	}
	l.log.Debug().Int("edges", l.opts.Store.Len()).Str("path", l.opts.StorePath).Msg("saved store")
	return nil
}

func (l *Loop) publish() {
	snap := l.session.Snapshot()
	l.snap.Store(&snap)
	metrics.TiredSongs.Set(float64(len(snap.Tired)))
	if snap.Playback.State == core.StateStopped {
		l.stopOnce.Do(func() { close(l.stopped) })
	}
}

// String implements fmt.Stringer for the supervisor's logs.
func (l *Loop) String() string {
	return "session"
}
