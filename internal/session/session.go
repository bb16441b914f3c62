// Package session drives playback: it asks the selector for songs, hands them
// to the player, and feeds listening events back into the transition store.
//
// A Session is not safe for concurrent use. Loop owns one from a single
// goroutine and publishes immutable snapshots for readers.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/metrics"
	"github.com/tessro/markov/internal/policy"
	"github.com/tessro/markov/internal/selector"
)

var (
	ErrStopped        = errors.New("session stopped")
	ErrNoHistory      = errors.New("no previous song")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoSong         = errors.New("no song given")
)

// Chain is the part of the transition store the session reads and writes.
type Chain interface {
	Lookup(from, to core.SongID) (float32, bool)
	SetWeight(from, to core.SongID, weight float32)
	Outgoing(from core.SongID) iter.Seq2[core.SongID, float32]
}

// Config wires a session to its collaborators.
type Config struct {
	Chain   Chain
	Library core.Library
	Player  core.Player

	Deltas   policy.Deltas
	Sigmoid  selector.Sigmoid
	Rand     selector.Source
	Mode     string
	Cooldown time.Duration

	VolumeStep   int
	SeekSeconds  float64
	HistoryLimit int

	// Now defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Session is the playback state machine.
type Session struct {
	chain   Chain
	library core.Library
	player  core.Player
	deltas  policy.Deltas
	sigmoid selector.Sigmoid
	rand    selector.Source
	now     func() time.Time
	log     zerolog.Logger

	strategy  selector.Strategy
	random    selector.Strategy
	cooldowns *policy.Cooldowns
	history   *core.History

	volumeStep  int
	seekSeconds float64

	state    core.PlayState
	current  core.SongID
	previous core.SongID
	volume   int
	muted    bool
	percent  int
	reason   Reason

	// pending is a reinforcement waiting for the player to confirm that its
	// target started. confirmed is set once the current song is known to play.
	pending   *transition
	confirmed bool
}

type transition struct {
	from, to core.SongID
}

// New creates an idle session. It does not start playback.
func New(cfg Config) (*Session, error) {
	if cfg.Chain == nil || cfg.Library == nil || cfg.Player == nil {
		return nil, errors.New("session needs a chain, a library and a player")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = selector.NewSource(0)
	}
	if cfg.Sigmoid == (selector.Sigmoid{}) {
		cfg.Sigmoid = selector.DefaultSigmoid()
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = 5
	}
	if cfg.SeekSeconds <= 0 {
		cfg.SeekSeconds = 10
	}

	s := &Session{
		chain:       cfg.Chain,
		library:     cfg.Library,
		player:      cfg.Player,
		deltas:      cfg.Deltas,
		sigmoid:     cfg.Sigmoid,
		rand:        cfg.Rand,
		now:         cfg.Now,
		log:         cfg.Logger,
		cooldowns:   policy.NewCooldowns(cfg.Cooldown),
		history:     core.NewHistory(cfg.HistoryLimit),
		volumeStep:  cfg.VolumeStep,
		seekSeconds: cfg.SeekSeconds,
		state:       core.StateIdle,
		volume:      100,
	}
	s.random = &selector.Random{Library: cfg.Library, Rand: cfg.Rand}
	if err := s.SetMode(cfg.Mode); err != nil {
		return nil, err
	}
	return s, nil
}

// Mode returns the active selection strategy name.
func (s *Session) Mode() string {
	return s.strategy.Name()
}

// SetMode switches the selection strategy.
func (s *Session) SetMode(mode string) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	strategy, err := selector.New(mode, s.deps())
	if err != nil {
		return err
	}
	s.strategy = strategy
	return nil
}

func (s *Session) deps() selector.Deps {
	return selector.Deps{
		Chain:   s.chain,
		Library: s.library,
		Sigmoid: s.sigmoid,
		Rand:    s.rand,
	}
}

// State returns the playback state.
func (s *Session) State() core.PlayState { return s.state }

// Current returns the playing song, if any.
func (s *Session) Current() core.SongID { return s.current }

// Previous returns the song played before the current one, if any.
func (s *Session) Previous() core.SongID { return s.previous }

// Advance selects the next song and starts it. Forward playback
// (Completed or Initial) reinforces the transition into the new song; a skip
// does not.
func (s *Session) Advance(ctx context.Context, reason Reason) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	st := s.selectorState()
	fallback := s.isFallback(st)

	next, err := s.strategy.Next(ctx, st)
	metrics.RecordSelection(s.strategy.Name(), fallback, err)
	if err != nil {
		s.log.Warn().Err(err).Str("reason", reason.String()).Msg("selection failed")
		return err
	}
	return s.start(ctx, next, reason, reason.Reinforces())
}

// isFallback reports whether the markov strategy will have to fall back to a
// library-wide pick.
func (s *Session) isFallback(st selector.State) bool {
	if s.strategy.Name() != selector.NameMarkov {
		return false
	}
	return len(selector.Candidates(s.chain, st.Current, st.Tired, s.sigmoid)) == 0
}

// PlaySong starts a song chosen by the listener. It counts as forward
// playback, so the transition from the current song is reinforced.
func (s *Session) PlaySong(ctx context.Context, song core.SongID) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	if song.IsZero() {
		return ErrNoSong
	}
	return s.start(ctx, song, ReasonManual, true)
}

// Random jumps to a uniformly chosen song without learning from the jump.
func (s *Session) Random(ctx context.Context) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	next, err := s.random.Next(ctx, s.selectorState())
	metrics.RecordSelection(selector.NameRandom, true, err)
	if err != nil {
		return err
	}
	return s.start(ctx, next, ReasonRandom, false)
}

// GoBack replays the song before the current one. Nothing is learned.
func (s *Session) GoBack(ctx context.Context) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	entries := s.history.Entries
	if len(entries) < 2 {
		return ErrNoHistory
	}
	target := entries[len(entries)-2].Song
	s.settle(ctx)
	if err := s.play(ctx, target); err != nil {
		return err
	}

	s.history.Pop()
	s.current = target
	s.previous = ""
	if n := len(s.history.Entries); n >= 2 {
		s.previous = s.history.Entries[n-2].Song
	}
	s.state = core.StatePlaying
	s.percent = 0
	s.reason = ReasonPrevious
	s.confirmed = s.startedNow(ctx, target)
	metrics.Advances.WithLabelValues(ReasonPrevious.String()).Inc()
	s.log.Info().Str("song", string(target)).Msg("went back")
	return nil
}

// Observe records that song started outside the session's control, for
// example when the player advanced on its own. It is treated as forward
// playback.
func (s *Session) Observe(song core.SongID) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	if song.IsZero() {
		return ErrNoSong
	}
	if song == s.current && s.state != core.StateIdle {
		return nil
	}
	s.pending = nil
	s.enter(song, ReasonObserved)
	s.confirmed = true
	if !s.previous.IsZero() {
		s.reinforce(transition{from: s.previous, to: s.current})
	}
	return nil
}

// start plays song and enters it. When reinforce is set, the transition into
// song is learned once the player confirms the song started.
func (s *Session) start(ctx context.Context, song core.SongID, reason Reason, reinforce bool) error {
	s.settle(ctx)
	if err := s.play(ctx, song); err != nil {
		return err
	}
	s.enter(song, reason)
	if reinforce && !s.previous.IsZero() {
		s.pending = &transition{from: s.previous, to: s.current}
	}
	s.confirm(ctx)
	return nil
}

// startedNow reports whether the player has started song. Players that load
// synchronously have started it once Play returns.
func (s *Session) startedNow(ctx context.Context, song core.SongID) bool {
	l, ok := s.player.(core.Loader)
	if !ok {
		return true
	}
	path, err := l.Loaded(ctx)
	return err == nil && path == s.library.Path(song)
}

// confirm applies the pending reinforcement if the current song has started.
func (s *Session) confirm(ctx context.Context) {
	if !s.confirmed {
		if s.current.IsZero() || !s.startedNow(ctx, s.current) {
			return
		}
		s.confirmed = true
	}
	if s.pending != nil {
		s.reinforce(*s.pending)
		s.pending = nil
	}
}

// settle resolves the pending reinforcement before the session moves on. A
// song that never started teaches nothing.
func (s *Session) settle(ctx context.Context) {
	s.confirm(ctx)
	if s.pending != nil {
		s.log.Debug().
			Str("from", string(s.pending.from)).
			Str("to", string(s.pending.to)).
			Msg("dropped reinforcement for a song that never started")
		s.pending = nil
	}
}

func (s *Session) play(ctx context.Context, song core.SongID) error {
	if err := s.player.Play(ctx, s.library.Path(song)); err != nil {
		metrics.PlayErrors.Inc()
		s.state = core.StateIdle
		s.log.Error().Err(err).Str("song", string(song)).Msg("play failed")
		return fmt.Errorf("player: play %s: %w", song, err)
	}
	return nil
}

// enter moves the session onto song once the player has accepted it.
func (s *Session) enter(song core.SongID, reason Reason) {
	s.previous = s.current
	s.current = song
	s.history.Push(song, s.now())
	s.state = core.StatePlaying
	s.percent = 0
	s.reason = reason
	s.confirmed = false
	metrics.Advances.WithLabelValues(reason.String()).Inc()
	s.log.Info().Str("song", string(song)).Str("reason", reason.String()).Msg("playing")
}

func (s *Session) reinforce(t transition) {
	w := s.update(t.from, t.to, policy.EventSequence)
	metrics.Reinforcements.Inc()
	s.log.Debug().
		Str("from", string(t.from)).
		Str("to", string(t.to)).
		Float32("weight", w).
		Msg("reinforced")
}

// update applies event to the edge from -> to and returns the new weight.
func (s *Session) update(from, to core.SongID, event policy.Event) float32 {
	current, ok := s.chain.Lookup(from, to)
	w := policy.Apply(event, policy.Observed(current, ok, s.deltas), s.deltas)
	s.chain.SetWeight(from, to, w)
	stored, _ := s.chain.Lookup(from, to)
	return stored
}

// Feedback applies listener feedback to the transition into the current
// song. Like and dislike change that edge; tired suppresses the current song
// for the cooldown window. Feedback with nothing to act on is a no-op.
func (s *Session) Feedback(event policy.Event) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	metrics.Feedback.WithLabelValues(event.String()).Inc()

	if event == policy.EventTired {
		if s.current.IsZero() {
			return nil
		}
		s.cooldowns.Mark(s.current, s.now())
		s.log.Info().Str("song", string(s.current)).Dur("cooldown", s.cooldowns.Window()).Msg("tired")
		return nil
	}

	if s.previous.IsZero() || s.current.IsZero() {
		return nil
	}
	w := s.update(s.previous, s.current, event)
	s.log.Info().
		Str("event", event.String()).
		Str("from", string(s.previous)).
		Str("to", string(s.current)).
		Float32("weight", w).
		Msg("feedback")
	return nil
}

// Tired reports whether song is under a cooldown.
func (s *Session) Tired(song core.SongID) bool {
	return s.cooldowns.Tired(song, s.now())
}

func (s *Session) selectorState() selector.State {
	return selector.State{
		Current:  s.current,
		Previous: s.previous,
		Tired:    s.Tired,
	}
}

// SetPaused pauses or resumes the player.
func (s *Session) SetPaused(ctx context.Context, paused bool) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	if s.current.IsZero() {
		return nil
	}
	if err := s.player.SetPaused(ctx, paused); err != nil {
		return fmt.Errorf("player: pause: %w", err)
	}
	if paused {
		s.state = core.StatePaused
	} else {
		s.state = core.StatePlaying
	}
	return nil
}

// TogglePause flips between playing and paused.
func (s *Session) TogglePause(ctx context.Context) error {
	return s.SetPaused(ctx, s.state != core.StatePaused)
}

// SetVolume sets the volume, clamped to 0-100.
func (s *Session) SetVolume(ctx context.Context, percent int) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	percent = max(0, min(100, percent))
	if err := s.player.SetVolume(ctx, percent); err != nil {
		return fmt.Errorf("player: volume: %w", err)
	}
	s.volume = percent
	return nil
}

// VolumeBy changes the volume by delta steps of the configured size.
func (s *Session) VolumeBy(ctx context.Context, steps int) error {
	return s.SetVolume(ctx, s.volume+steps*s.volumeStep)
}

// ToggleMute flips the mute flag.
func (s *Session) ToggleMute(ctx context.Context) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	if err := s.player.SetMuted(ctx, !s.muted); err != nil {
		return fmt.Errorf("player: mute: %w", err)
	}
	s.muted = !s.muted
	return nil
}

// Seek moves within the current song.
func (s *Session) Seek(ctx context.Context, seek core.Seek) error {
	if s.state == core.StateStopped {
		return ErrStopped
	}
	if s.current.IsZero() {
		return nil
	}
	if err := s.player.Seek(ctx, seek); err != nil {
		return fmt.Errorf("player: seek: %w", err)
	}
	return nil
}

// SeekBy seeks relative to the current position by steps of the configured
// size.
func (s *Session) SeekBy(ctx context.Context, steps int) error {
	return s.Seek(ctx, core.Seek{Seconds: float64(steps) * s.seekSeconds})
}

// Stop halts playback for good. Every later mutating call fails with
// ErrStopped.
func (s *Session) Stop(ctx context.Context) error {
	if s.state == core.StateStopped {
		return nil
	}
	s.settle(ctx)
	s.state = core.StateStopped
	s.log.Info().Msg("stopped")
	if err := s.player.Stop(ctx); err != nil {
		return fmt.Errorf("player: stop: %w", err)
	}
	return nil
}

// Tick polls the player and advances when the current song has finished.
func (s *Session) Tick(ctx context.Context) error {
	if s.state != core.StatePlaying {
		return nil
	}
	if pct, err := s.player.PercentPos(ctx); err == nil {
		s.percent = max(0, min(100, pct))
	}
	done, err := s.player.Finished(ctx)
	if errors.Is(err, core.ErrUnplayable) {
		return s.abandon(ctx, err)
	}
	if err != nil {
		return fmt.Errorf("player: poll: %w", err)
	}
	if foreign, ok := s.loadedElsewhere(ctx); ok {
		return s.Observe(foreign)
	}
	s.confirm(ctx)
	if !done {
		return nil
	}
	return s.Advance(ctx, ReasonCompleted)
}

// loadedElsewhere returns the library song the player is playing when it is
// not the one the session started.
func (s *Session) loadedElsewhere(ctx context.Context) (core.SongID, bool) {
	l, ok := s.player.(core.Loader)
	if !ok {
		return "", false
	}
	r, ok := s.library.(core.Resolver)
	if !ok {
		return "", false
	}
	path, err := l.Loaded(ctx)
	if err != nil || path == "" || path == s.library.Path(s.current) {
		return "", false
	}
	song, ok := r.Song(path)
	if !ok {
		s.log.Debug().Str("path", path).Msg("player is playing a file outside the library")
		return "", false
	}
	return song, true
}

// abandon moves past a song the player accepted but could not play. The song
// is rested for the cooldown and, if it never started, dropped from history.
func (s *Session) abandon(ctx context.Context, cause error) error {
	failed := s.current
	metrics.PlayErrors.Inc()
	s.log.Warn().Err(cause).Str("song", string(failed)).Msg("song could not be played")

	s.pending = nil
	s.cooldowns.Mark(failed, s.now())
	if !s.confirmed {
		s.history.Pop()
		s.current = s.previous
		s.previous = ""
		if n := len(s.history.Entries); n >= 2 {
			s.previous = s.history.Entries[n-2].Song
		}
	}
	s.state = core.StateIdle
	return s.Advance(ctx, s.skipReason())
}
