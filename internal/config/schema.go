package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Chain    ChainConfig    `toml:"chain"`
	Selector SelectorConfig `toml:"selector"`
	Tired    TiredConfig    `toml:"tired"`
	Player   PlayerConfig   `toml:"player"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Controls ControlsConfig `toml:"controls"`
	TUI      TUIConfig      `toml:"tui"`
	Log      LogConfig      `toml:"log"`

	// defined holds the "section.key" names set by a file, the
	// environment or Set. Zero values under these keys are kept.
	defined map[string]bool
}

// LibraryConfig says where the music lives.
type LibraryConfig struct {
	Root     string   `toml:"root"`
	Patterns []string `toml:"patterns"`
}

// ChainConfig holds transition store settings and learning rates.
type ChainConfig struct {
	StorageFile    string   `toml:"storage_file"`
	BaseWeight     float64  `toml:"base_weight"`
	ReinforceDelta float64  `toml:"reinforce_delta"`
	LikeDelta      float64  `toml:"like_delta"`
	DislikeDelta   float64  `toml:"dislike_delta"`
	WeightMax      float64  `toml:"weight_max"`
	FlushInterval  Duration `toml:"flush_interval"`
}

// SelectorConfig holds next-song selection settings.
type SelectorConfig struct {
	Strategy string  `toml:"strategy"`
	Slope    float64 `toml:"slope"`
	Midpoint float64 `toml:"midpoint"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed uint64 `toml:"seed"`
}

// TiredConfig holds the tired cooldown.
type TiredConfig struct {
	Cooldown Duration `toml:"cooldown"`
}

// PlayerConfig selects and configures the playback backend.
type PlayerConfig struct {
	Backend      string   `toml:"backend"`
	MPVPath      string   `toml:"mpv_path"`
	Socket       string   `toml:"socket"`
	PollInterval Duration `toml:"poll_interval"`
}

// DaemonConfig holds background daemon settings.
type DaemonConfig struct {
	Socket      string `toml:"socket"`
	MetricsAddr string `toml:"metrics_addr"`
}

// ControlsConfig holds step sizes for volume and seek keys.
type ControlsConfig struct {
	VolumeStep  int     `toml:"volume_step"`
	SeekSeconds float64 `toml:"seek_seconds"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string   `toml:"theme"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string such as "90s" or "2h".
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{d}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}
