package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var statusNext int

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"now"},
	Short:   "Show the current session",
	Long: `Show what is playing, the transition that led to it, and where the chain
is likely to go next.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusNext, "next", "n", 5, "number of next-song candidates to list")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	snap, err := newController().Snapshot(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, snap)
	}
	printSnapshot(out, snap, statusNext)
	return nil
}
