package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/core"
	markoverrors "github.com/tessro/markov/internal/errors"
	"github.com/tessro/markov/internal/library"
	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/session"
	"github.com/tessro/markov/internal/wizard"
)

const controlTimeout = 10 * time.Second

// simpleCommand builds a command that sends one fixed op to the daemon.
func simpleCommand(use, short, long string, op session.Op, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, session.Command{Op: op}, done)
		},
	}
}

var (
	nextCmd = simpleCommand("next", "Skip to the next song",
		`Skip the current song. Skipping does not strengthen the transition into
the next song. Starts the session if nothing is playing yet.`,
		session.OpNext, "⏭ Skipped")
	prevCmd = simpleCommand("prev", "Go back to the previous song",
		`Replay the song before this one. Going back never changes the chain.`,
		session.OpPrev, "⏮ Back")
	pauseCmd = simpleCommand("pause", "Pause playback", `Pause the current song.`,
		session.OpPause, "⏸ Paused")
	resumeCmd = simpleCommand("resume", "Resume playback", `Resume the current song.`,
		session.OpResume, "▶ Resumed")
	stopCmd = simpleCommand("stop", "End the listening session",
		`Stop playback and end the session. The chain is saved and the daemon exits.`,
		session.OpStop, "⏹ Stopped")
	likeCmd = simpleCommand("like", "Like the transition into this song",
		`Strengthen the transition from the previous song to the current one.`,
		session.OpLike, "👍 Liked")
	dislikeCmd = simpleCommand("dislike", "Dislike the transition into this song",
		`Weaken the transition from the previous song to the current one.`,
		session.OpDislike, "👎 Disliked")
	tiredCmd = simpleCommand("tired", "Rest the current song for a while",
		`Keep the current song out of selection until tired.cooldown passes.
The chain is left unchanged.`,
		session.OpTired, "💤 Resting")
	randomCmd = simpleCommand("random", "Jump to a random song",
		`Play a random song from the library without teaching the chain anything.`,
		session.OpRandom, "🎲 Random")
	muteCmd = simpleCommand("mute", "Toggle mute", `Mute or unmute the player.`,
		session.OpMute, "🔇 Toggled mute")
)

var addCmd = &cobra.Command{
	Use:     "add [song]",
	Aliases: []string{"queue"},
	Short:   "Play a song from the library now",
	Long: `Play a song chosen by hand. The song is given relative to library.root, or
as an absolute path inside it. Choosing a song teaches the chain the same way
listening through to it does.

Without an argument in a terminal, a search box opens over the library.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

var modeCmd = &cobra.Command{
	Use:   "mode [strategy]",
	Short: "Show or change how the next song is picked",
	Long: `Show or change the selection strategy.

Strategies:
  markov   follow the learned chain (default)
  shuffle  every song once, in random order
  random   any song, uniformly
  repeat   the current song again
  loop     back to the previous song

Use --pick to choose from a list.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: selector.Names,
	RunE:      runMode,
}

var modePick bool

var (
	volumeUp   bool
	volumeDown bool
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show the volume, set it (0-100), or step it by controls.volume_step.

Examples:
  markov volume 50      # Set volume to 50%
  markov volume --up    # One step louder
  markov volume --down  # One step quieter`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var (
	seekStart bool
	seekEnd   bool
)

var seekCmd = &cobra.Command{
	Use:   "seek [position]",
	Short: "Move within the current song",
	Long: `Seek within the current song.

A plain number is seconds from the start. A leading + or - moves relative to
the current position. Use -- before negative values.

Examples:
  markov seek 90        # 1:30 into the song
  markov seek +10       # 10 seconds forward
  markov seek -- -10    # 10 seconds back
  markov seek --start   # back to the beginning
  markov seek --end     # skip to the end; the song counts as finished`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeek,
}

func init() {
	modeCmd.Flags().BoolVarP(&modePick, "pick", "p", false, "choose the strategy from a list")
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "increase volume by one step")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "decrease volume by one step")
	seekCmd.Flags().BoolVar(&seekStart, "start", false, "seek to the start of the song")
	seekCmd.Flags().BoolVar(&seekEnd, "end", false, "seek to the end of the song")

	rootCmd.AddCommand(nextCmd, prevCmd, pauseCmd, resumeCmd, stopCmd)
	rootCmd.AddCommand(likeCmd, dislikeCmd, tiredCmd, randomCmd, muteCmd)
	rootCmd.AddCommand(addCmd, modeCmd, volumeCmd, seekCmd)
}

func newController() session.Controller {
	return control.NewClient(cfg.Daemon.Socket)
}

// sendCommand runs c against the daemon and reports the outcome.
func sendCommand(cmd *cobra.Command, c session.Command, done string) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	snap, err := newController().Do(ctx, c)
	if err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), snap, done)
}

func report(out io.Writer, snap session.Snapshot, done string) error {
	if JSONOutput() {
		return writeJSON(out, snap)
	}
	if done != "" {
		fmt.Fprintln(out, done)
	}
	printSnapshot(out, snap, 0)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	if wizard.NeedsSong(args) {
		song, err := pickSong(lib)
		if err != nil || song.IsZero() {
			return err
		}
		return sendCommand(cmd, session.Command{Op: session.OpAdd, Song: song}, "➕ Playing")
	}
	song := resolveSong(args[0], lib.Root())

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	ok, err := lib.Contains(ctx, song)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", markoverrors.ErrSongNotFound, song)
	}
	return sendCommand(cmd, session.Command{Op: session.OpAdd, Song: song}, "➕ Playing")
}

// pickSong opens the song search. A zero SongID means the search was cancelled.
func pickSong(lib *library.Dir) (core.SongID, error) {
	interactive := wizard.NewInteractive()
	interactive.SetEnabled(!JSONOutput())
	if !interactive.CanInteract() {
		return "", fmt.Errorf("%w: no song given", markoverrors.ErrSongNotFound)
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	songs, err := lib.Songs(ctx)
	cancel()
	if err != nil {
		return "", err
	}
	interactive.SetSearchFunc(wizard.LibrarySearch(songs, 200))

	result, err := interactive.PromptSearch()
	if err != nil || result == nil {
		return "", err
	}
	return result.Song, nil
}

// pickMode offers the strategies with the current one marked.
func pickMode() (string, error) {
	interactive := wizard.NewInteractive()
	if !interactive.CanInteract() {
		return "", fmt.Errorf("--pick needs a terminal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	snap, err := newController().Snapshot(ctx)
	cancel()
	if err != nil {
		return "", err
	}

	options := make([]wizard.Option, 0, len(selector.Names))
	for _, name := range selector.Names {
		options = append(options, wizard.Option{
			Value:  name,
			Detail: strategyDetail[name],
			Active: name == snap.Mode,
		})
	}
	choice, err := interactive.PromptChoice("🎛  Selection strategy", options)
	if err != nil || choice == nil {
		return "", err
	}
	return choice.Value, nil
}

var strategyDetail = map[string]string{
	selector.NameMarkov:  "follow the learned chain",
	selector.NameShuffle: "every song once, in random order",
	selector.NameRandom:  "any song, uniformly",
	selector.NameRepeat:  "the current song again",
	selector.NameLoop:    "back to the previous song",
}

func runMode(cmd *cobra.Command, args []string) error {
	if modePick && len(args) == 0 {
		mode, err := pickMode()
		if err != nil || mode == "" {
			return err
		}
		args = []string{mode}
	}
	if len(args) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		snap, err := newController().Snapshot(ctx)
		if err != nil {
			return err
		}
		if JSONOutput() {
			return writeJSON(cmd.OutOrStdout(), map[string]string{"mode": snap.Mode})
		}
		fmt.Fprintln(cmd.OutOrStdout(), snap.Mode)
		return nil
	}

	mode := strings.ToLower(args[0])
	if !selector.Valid(mode) {
		return fmt.Errorf("unknown strategy %q (want one of %s)", args[0], strings.Join(selector.Names, ", "))
	}
	return sendCommand(cmd, session.Command{Op: session.OpMode, Mode: mode}, "Mode: "+mode)
}

func runVolume(cmd *cobra.Command, args []string) error {
	var c session.Command
	switch {
	case volumeUp && volumeDown:
		return fmt.Errorf("--up and --down are mutually exclusive")
	case volumeUp:
		c = session.Command{Op: session.OpVolumeStep, Value: 1}
	case volumeDown:
		c = session.Command{Op: session.OpVolumeStep, Value: -1}
	case len(args) == 1:
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid volume level: %s", args[0])
		}
		if level < 0 || level > 100 {
			return fmt.Errorf("volume must be between 0 and 100")
		}
		c = session.Command{Op: session.OpVolume, Value: level}
	default:
		c = session.Command{Op: session.OpStatus}
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	snap, err := newController().Do(ctx, c)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]any{"volume": snap.Playback.Volume, "muted": snap.Playback.Muted})
	}
	fmt.Fprintf(out, "🔊 Volume: %d%%", snap.Playback.Volume)
	if snap.Playback.Muted {
		fmt.Fprint(out, " (muted)")
	}
	fmt.Fprintln(out)
	return nil
}

// parseSeek reads a seek position: "90" is absolute, "+10" and "-10" are
// relative.
func parseSeek(arg string) (core.Seek, error) {
	relative := strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-")
	secs, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return core.Seek{}, fmt.Errorf("invalid position: %s", arg)
	}
	if !relative && secs < 0 {
		return core.Seek{}, fmt.Errorf("invalid position: %s", arg)
	}
	return core.Seek{Seconds: secs, Absolute: !relative}, nil
}

func runSeek(cmd *cobra.Command, args []string) error {
	var s core.Seek
	switch {
	case seekStart && seekEnd:
		return fmt.Errorf("--start and --end are mutually exclusive")
	case seekStart:
		s = core.Seek{Seconds: 0, Absolute: true}
	case seekEnd:
		s = core.SeekEnd()
	case len(args) == 1:
		var err error
		if s, err = parseSeek(args[0]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("give a position, --start, or --end")
	}
	return sendCommand(cmd, session.Command{Op: session.OpSeek, Seek: &s}, "")
}

// relativeTo strips root from an absolute path inside it.
func relativeTo(arg, root string) string {
	if filepath.IsAbs(arg) && root != "" {
		if rel, err := filepath.Rel(root, arg); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(arg)
}
