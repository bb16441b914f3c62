package config

import (
	"errors"
	"fmt"
	"math"
	"net"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Library.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("library: %w", err))
	}
	if err := c.Chain.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chain: %w", err))
	}
	if err := c.Selector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("selector: %w", err))
	}
	if err := c.Tired.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tired: %w", err))
	}
	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Daemon.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("daemon: %w", err))
	}
	if err := c.Controls.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("controls: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks LibraryConfig for errors.
func (c *LibraryConfig) Validate() error {
	if c.Root == "" {
		return errors.New("root is required")
	}
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern: %q", p)
		}
	}
	return nil
}

// Validate checks ChainConfig for errors.
func (c *ChainConfig) Validate() error {
	if c.StorageFile == "" {
		return errors.New("storage_file is required")
	}
	var errs []error
	for name, v := range map[string]float64{
		"base_weight":     c.BaseWeight,
		"reinforce_delta": c.ReinforceDelta,
		"like_delta":      c.LikeDelta,
		"dislike_delta":   c.DislikeDelta,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a non-negative number", name))
		}
	}
	if c.WeightMax <= 0 || c.WeightMax > math.MaxFloat32 {
		errs = append(errs, errors.New("weight_max must be positive"))
	}
	if c.BaseWeight > c.WeightMax {
		errs = append(errs, errors.New("base_weight must not exceed weight_max"))
	}
	if c.FlushInterval.Duration < 0 {
		errs = append(errs, errors.New("flush_interval must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks SelectorConfig for errors.
func (c *SelectorConfig) Validate() error {
	switch c.Strategy {
	case "", "markov", "shuffle", "random", "repeat", "loop":
		// valid
	default:
		return fmt.Errorf("invalid strategy: %s (must be markov, shuffle, random, repeat, or loop)", c.Strategy)
	}
	if c.Slope < 0 {
		return errors.New("slope must be non-negative")
	}
	return nil
}

// Validate checks TiredConfig for errors.
func (c *TiredConfig) Validate() error {
	if c.Cooldown.Duration < 0 {
		return errors.New("cooldown must be non-negative")
	}
	return nil
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	switch c.Backend {
	case "", "mpv", "memory":
		// valid
	default:
		return fmt.Errorf("invalid backend: %s (must be mpv or memory)", c.Backend)
	}
	if c.PollInterval.Duration < 0 {
		return errors.New("poll_interval must be non-negative")
	}
	return nil
}

// Validate checks DaemonConfig for errors.
func (c *DaemonConfig) Validate() error {
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr: %w", err)
		}
	}
	return nil
}

// Validate checks ControlsConfig for errors.
func (c *ControlsConfig) Validate() error {
	if c.VolumeStep < 0 || c.VolumeStep > 100 {
		return errors.New("volume_step must be between 0 and 100")
	}
	if c.SeekSeconds < 0 {
		return errors.New("seek_seconds must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RefreshInterval.Duration < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error", "disabled":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or disabled)", c.Level)
	}
	switch c.Format {
	case "", "console", "json":
		// valid
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Format)
	}
	return nil
}
