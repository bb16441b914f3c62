package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/browser"
	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/daemon"
	"github.com/tessro/markov/internal/logging"
	"github.com/tessro/markov/internal/tui"
	"github.com/tessro/markov/internal/tui/styles"
)

var (
	playRemote bool
	playFresh  bool

	daemonFresh    bool
	daemonAutoplay bool
)

var playCmd = &cobra.Command{
	Use:     "play",
	Aliases: []string{"ui", "tui"},
	Short:   "Start a listening session with the dashboard",
	Long: `Start a listening session and open the interactive dashboard.

If a daemon is already running, the dashboard attaches to it. Otherwise the
session runs inside this process and serves the control socket, so the other
commands (next, like, status, ...) work from another terminal.

The dashboard shows:
  • Now Playing - current song, the transition that led here, progress
  • Up Next - where the chain may go from here, with probabilities
  • Library - browse directories and pick a song by hand
  • History - songs started this session

Press ? inside the dashboard for keyboard shortcuts.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a headless listening session",
	Long: `Run a listening session in the foreground without a dashboard.

Control it with the other commands or attach with 'markov play'. The chain is
saved periodically and on exit. Set daemon.metrics_addr to expose Prometheus
metrics.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	playCmd.Flags().BoolVarP(&playRemote, "remote", "r", false, "attach to a running daemon, fail if there is none")
	playCmd.Flags().BoolVar(&playFresh, "fresh", false, "start with an empty chain if the chain file is damaged")

	daemonCmd.Flags().BoolVar(&daemonFresh, "fresh", false, "start with an empty chain if the chain file is damaged")
	daemonCmd.Flags().BoolVar(&daemonAutoplay, "autoplay", true, "start playing immediately")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(daemonCmd)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	styles.Apply(cfg.TUI.Theme)

	client := control.NewClient(cfg.Daemon.Socket)
	pingErr := client.Ping(ctx)
	if playRemote && pingErr != nil {
		return pingErr
	}
	if pingErr == nil {
		return runRemoteUI(ctx, client)
	}
	return runLocalUI(ctx)
}

// runRemoteUI attaches the dashboard to a daemon. The library panel is
// built from local configuration and is left out if it cannot be opened.
func runRemoteUI(ctx context.Context, client *control.Client) error {
	app := &tui.App{
		Controller:  client,
		RefreshRate: cfg.TUI.RefreshInterval.Duration,
	}
	if lib, err := openLibrary(cfg); err == nil {
		app.Library = lib
		if b, err := browser.New(lib.Root(), lib.Match); err == nil {
			app.Browser = b
		}
	}
	return tui.Run(ctx, app)
}

func runLocalUI(ctx context.Context) error {
	// The dashboard owns the terminal; logs go to log.file or nowhere.
	closeLog, err := setupLogging(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	rt, err := newRuntime(ctx, cfg, runtimeOptions{Fresh: playFresh, Autoplay: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	b, err := browser.New(rt.library.Root(), rt.library.Match)
	if err != nil {
		return err
	}

	d := daemon.New(daemon.Config{
		Loop:        rt.loop,
		Socket:      cfg.Daemon.Socket,
		MetricsAddr: cfg.Daemon.MetricsAddr,
		Logger:      logging.For("daemon"),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- d.Run(runCtx)
		// The session is over; close the dashboard too.
		cancel()
	}()

	uiErr := tui.Run(runCtx, &tui.App{
		Controller:  rt.loop,
		Browser:     b,
		Library:     rt.library,
		RefreshRate: cfg.TUI.RefreshInterval.Duration,
	})
	cancel()

	return errors.Join(uiErr, <-errc)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	closeLog, err := setupLogging(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	if err := control.NewClient(cfg.Daemon.Socket).Ping(ctx); err == nil {
		return fmt.Errorf("%w at %s", control.ErrDaemonRunning, cfg.Daemon.Socket)
	}

	rt, err := newRuntime(ctx, cfg, runtimeOptions{Fresh: daemonFresh, Autoplay: daemonAutoplay})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	log := logging.For("daemon")
	songs, err := rt.library.Songs(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("socket", cfg.Daemon.Socket).
		Str("chain", cfg.Chain.StorageFile).
		Int("edges", rt.store.Len()).
		Int("songs", len(songs)).
		Msg("daemon starting")

	d := daemon.New(daemon.Config{
		Loop:        rt.loop,
		Socket:      cfg.Daemon.Socket,
		MetricsAddr: cfg.Daemon.MetricsAddr,
		Logger:      log,
	})
	return d.Run(ctx)
}

// resolveSong turns a command-line argument into a library song. Absolute
// paths under the library root are made relative.
func resolveSong(arg string, root string) core.SongID {
	return core.SongID(relativeTo(arg, root))
}
