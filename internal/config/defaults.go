package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Root:     filepath.Join(homeDir(), "Music"),
			Patterns: []string{"**/*.{mp3,flac,ogg,opus,m4a,wav}"},
		},
		Chain: ChainConfig{
			StorageFile:    filepath.Join(dataDir(), "chain.db"),
			BaseWeight:     0,
			ReinforceDelta: 1,
			LikeDelta:      2,
			DislikeDelta:   2,
			WeightMax:      100,
			FlushInterval:  D(5 * time.Minute),
		},
		Selector: SelectorConfig{
			Strategy: "markov",
			Slope:    0.5,
			Midpoint: 3,
		},
		Tired: TiredConfig{
			Cooldown: D(2 * time.Hour),
		},
		Player: PlayerConfig{
			Backend:      "mpv",
			MPVPath:      "mpv",
			Socket:       filepath.Join(runtimeDir(), "markov-mpv.sock"),
			PollInterval: D(time.Second),
		},
		Daemon: DaemonConfig{
			Socket: filepath.Join(runtimeDir(), "markov.sock"),
		},
		Controls: ControlsConfig{
			VolumeStep:  5,
			SeekSeconds: 10,
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: D(500 * time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults. Numeric
// settings where zero is meaningful keep an explicitly defined zero.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Library
	if c.Library.Root == "" {
		c.Library.Root = d.Library.Root
	}
	if len(c.Library.Patterns) == 0 {
		c.Library.Patterns = d.Library.Patterns
	}

	// Chain
	if c.Chain.StorageFile == "" {
		c.Chain.StorageFile = d.Chain.StorageFile
	}
	if c.Chain.ReinforceDelta == 0 && !c.Defined("chain.reinforce_delta") {
		c.Chain.ReinforceDelta = d.Chain.ReinforceDelta
	}
	if c.Chain.LikeDelta == 0 && !c.Defined("chain.like_delta") {
		c.Chain.LikeDelta = d.Chain.LikeDelta
	}
	if c.Chain.DislikeDelta == 0 && !c.Defined("chain.dislike_delta") {
		c.Chain.DislikeDelta = d.Chain.DislikeDelta
	}
	if c.Chain.WeightMax == 0 && !c.Defined("chain.weight_max") {
		c.Chain.WeightMax = d.Chain.WeightMax
	}
	if c.Chain.FlushInterval.Duration == 0 {
		c.Chain.FlushInterval = d.Chain.FlushInterval
	}

	// Selector
	if c.Selector.Strategy == "" {
		c.Selector.Strategy = d.Selector.Strategy
	}
	if c.Selector.Slope == 0 && !c.Defined("selector.slope") {
		c.Selector.Slope = d.Selector.Slope
	}
	if c.Selector.Midpoint == 0 && !c.Defined("selector.midpoint") {
		c.Selector.Midpoint = d.Selector.Midpoint
	}

	// Tired
	if c.Tired.Cooldown.Duration == 0 {
		c.Tired.Cooldown = d.Tired.Cooldown
	}

	// Player
	if c.Player.Backend == "" {
		c.Player.Backend = d.Player.Backend
	}
	if c.Player.MPVPath == "" {
		c.Player.MPVPath = d.Player.MPVPath
	}
	if c.Player.Socket == "" {
		c.Player.Socket = d.Player.Socket
	}
	if c.Player.PollInterval.Duration == 0 {
		c.Player.PollInterval = d.Player.PollInterval
	}

	// Daemon
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = d.Daemon.Socket
	}

	// Controls
	if c.Controls.VolumeStep == 0 {
		c.Controls.VolumeStep = d.Controls.VolumeStep
	}
	if c.Controls.SeekSeconds == 0 {
		c.Controls.SeekSeconds = d.Controls.SeekSeconds
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval.Duration == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	c.expandPaths()
}

func (c *Config) expandPaths() {
	c.Library.Root = ExpandHome(c.Library.Root)
	c.Chain.StorageFile = ExpandHome(c.Chain.StorageFile)
	c.Player.Socket = ExpandHome(c.Player.Socket)
	c.Daemon.Socket = ExpandHome(c.Daemon.Socket)
	c.Log.File = ExpandHome(c.Log.File)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "markov")
	}
	return filepath.Join(homeDir(), ".local", "share", "markov")
}

func runtimeDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return xdg
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("markov-%d", os.Getuid()))
}
