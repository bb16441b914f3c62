package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/session"
	"github.com/tessro/markov/internal/tail"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
	tailInterval  time.Duration
	tailHistory   int
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the session in real time",
	Long: `Watch the running session and print changes as they happen.

Events tracked:
  - Song changes (new song started)
  - Completions (song finished and the chain moved on)
  - Skips (song skipped before it finished)
  - Pause/Resume
  - Volume and mute changes
  - Mode changes
  - The session stopping

Templates see .Type .Emoji .Time .Song .Title .Dir .Previous .State .Mode
.Reason .Weight .Volume .Muted, e.g. --format '{{.Time}} {{.Title}} ({{.Reason}})'`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")
	tailCmd.Flags().DurationVarP(&tailInterval, "interval", "i", time.Second, "poll interval")
	tailCmd.Flags().IntVarP(&tailHistory, "history", "n", 5, "recent songs to show on startup")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	if tailFormat != "" {
		if err := tail.ParseTemplate(tailFormat); err != nil {
			return fmt.Errorf("invalid format: %w", err)
		}
	}

	formatter := tail.NewFormatter(
		tail.WithEmoji(!tailNoEmoji),
		tail.WithTimestamp(tailTimestamp),
		tail.WithTemplate(tailFormat),
	)

	ctx, stop := signalContext(cmd)
	defer stop()

	ctrl := newController()
	out := cmd.OutOrStdout()

	// Fail fast when there is nothing to follow.
	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	showHistory(out, snap)

	return follow(ctx, out, tail.NewWatcher(ctrl, tailInterval), formatter)
}

// follow prints watcher events until the session stops or ctx is done.
func follow(ctx context.Context, out io.Writer, watcher *tail.Watcher, formatter *tail.Formatter) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Start(ctx)
	}()

	for event := range watcher.Events() {
		fmt.Fprintln(out, formatter.Format(event))
	}

	err := <-errCh
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// showHistory prints the songs before the current one, oldest first. The
// watcher reports the current song itself.
func showHistory(out io.Writer, snap session.Snapshot) {
	if tailHistory <= 0 || len(snap.History) < 2 {
		return
	}
	earlier := snap.History[1:]
	if len(earlier) > tailHistory {
		earlier = earlier[:tailHistory]
	}
	for i := len(earlier) - 1; i >= 0; i-- {
		entry := earlier[i]
		timestamp := ""
		if tailTimestamp {
			timestamp = entry.StartedAt.Local().Format("15:04:05") + " "
		}
		emoji := ""
		if !tailNoEmoji {
			emoji = "⏪ "
		}
		fmt.Fprintf(out, "%s%s%s\n", timestamp, emoji, entry.Song)
	}
}
