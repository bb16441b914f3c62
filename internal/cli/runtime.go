package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tessro/markov/internal/chain"
	"github.com/tessro/markov/internal/config"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/library"
	"github.com/tessro/markov/internal/logging"
	"github.com/tessro/markov/internal/player"
	"github.com/tessro/markov/internal/player/mpv"
	"github.com/tessro/markov/internal/policy"
	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/session"
)

// runtime is everything a local session needs, built from configuration.
type runtime struct {
	store   *chain.Store
	library *library.Dir
	player  core.Player
	session *session.Session
	loop    *session.Loop
}

type runtimeOptions struct {
	// Fresh starts from an empty store when the store file is malformed.
	Fresh    bool
	Autoplay bool
}

// setupLogging points the root logger at the configured file, or at
// fallback when no file is set.
func setupLogging(c *config.Config, fallback io.Writer) (func() error, error) {
	level := c.Log.Level
	if verbose && (level == "" || level == "info") {
		level = "debug"
	}
	return logging.Init(logging.Config{
		Level:  level,
		Format: c.Log.Format,
		File:   c.Log.File,
		Output: fallback,
	})
}

func storeOptions(c *config.Config) chain.Options {
	return chain.Options{WeightMax: float32(c.Chain.WeightMax)}
}

// loadStore reads the configured store. A malformed file is an error unless
// fresh is set, in which case the file is left alone until the next save.
func loadStore(c *config.Config, fresh bool) (*chain.Store, error) {
	store, err := chain.Load(c.Chain.StorageFile, storeOptions(c))
	if err == nil {
		return store, nil
	}
	if fresh && errors.Is(err, chain.ErrMalformed) {
		log := logging.For("chain")
		log.Warn().Err(err).
			Str("path", c.Chain.StorageFile).
			Msg("starting with an empty chain")
		return chain.New(storeOptions(c)), nil
	}
	return nil, err
}

func openLibrary(c *config.Config) (*library.Dir, error) {
	return library.New(c.Library.Root, c.Library.Patterns)
}

func startPlayer(ctx context.Context, c *config.Config) (core.Player, error) {
	switch c.Player.Backend {
	case "memory":
		return player.NewMemory(), nil
	default:
		p, err := mpv.Start(ctx, mpv.Options{
			Binary: c.Player.MPVPath,
			Socket: c.Player.Socket,
			Logger: logging.For("mpv"),
		})
		if err != nil {
			return nil, fmt.Errorf("player: %w", err)
		}
		return p, nil
	}
}

func newRuntime(ctx context.Context, c *config.Config, opts runtimeOptions) (*runtime, error) {
	store, err := loadStore(c, opts.Fresh)
	if err != nil {
		return nil, err
	}
	lib, err := openLibrary(c)
	if err != nil {
		return nil, err
	}
	p, err := startPlayer(ctx, c)
	if err != nil {
		return nil, err
	}

	s, err := session.New(session.Config{
		Chain:   store,
		Library: lib,
		Player:  p,
		Deltas: policy.Deltas{
			Base:      float32(c.Chain.BaseWeight),
			Reinforce: float32(c.Chain.ReinforceDelta),
			Like:      float32(c.Chain.LikeDelta),
			Dislike:   float32(c.Chain.DislikeDelta),
		},
		Sigmoid:     selector.Sigmoid{Slope: c.Selector.Slope, Midpoint: c.Selector.Midpoint},
		Rand:        selector.NewSource(c.Selector.Seed),
		Mode:        c.Selector.Strategy,
		Cooldown:    c.Tired.Cooldown.Duration,
		VolumeStep:  c.Controls.VolumeStep,
		SeekSeconds: c.Controls.SeekSeconds,
		Logger:      logging.For("session"),
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	loop := session.NewLoop(s, session.LoopOptions{
		Store:     store,
		StorePath: c.Chain.StorageFile,
		Poll:      c.Player.PollInterval.Duration,
		Flush:     c.Chain.FlushInterval.Duration,
		Autoplay:  opts.Autoplay,
		Logger:    logging.For("loop"),
	})

	return &runtime{
		store:   store,
		library: lib,
		player:  p,
		session: s,
		loop:    loop,
	}, nil
}

// Close shuts the player down.
func (r *runtime) Close() error {
	if r.player == nil {
		return nil
	}
	return r.player.Close()
}
