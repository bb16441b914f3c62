package cli

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/chain"
	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/core"
	markoverrors "github.com/tessro/markov/internal/errors"
)

var (
	chainLimit int
	chainMerge string
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect and maintain the learned chain",
	Long: `Commands for the file that stores learned transitions (chain.storage_file).

Files ending in .toml are plain-text edge lists; anything else is a SQLite
database. Export and import convert between the two.`,
}

var chainShowCmd = &cobra.Command{
	Use:   "show [song]",
	Short: "List the strongest transitions",
	Long:  `List the strongest transitions overall, or the ones leaving a song.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChainShow,
}

var chainStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the chain",
	Args:  cobra.NoArgs,
	RunE:  runChainStats,
}

var chainExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the chain to another file",
	Long: `Write a copy of the chain. The format follows the file extension.

Examples:
  markov chain export backup.db
  markov chain export chain.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runChainExport,
}

var chainImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Merge transitions from other files",
	Long: `Merge transitions from exported files into the chain.

Merge strategies for pairs present in both:
  replace  take the imported weight (default)
  max      keep the larger weight
  sum      add the weights

The daemon must not be running, since it would overwrite the result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChainImport,
}

var chainPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove transitions whose weight fell to zero",
	Args:  cobra.NoArgs,
	RunE:  runChainPrune,
}

func init() {
	chainShowCmd.Flags().IntVarP(&chainLimit, "limit", "n", 20, "maximum rows to show (0 for all)")
	chainImportCmd.Flags().StringVar(&chainMerge, "merge", "replace", "merge strategy: replace, max, or sum")

	chainCmd.AddCommand(chainShowCmd, chainStatsCmd, chainExportCmd, chainImportCmd, chainPruneCmd)
	rootCmd.AddCommand(chainCmd)
}

func runChainShow(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cfg, false)
	if err != nil {
		return err
	}

	var edges []chain.Edge
	if len(args) == 1 {
		from := core.SongID(args[0])
		for to, w := range store.Outgoing(from) {
			edges = append(edges, chain.Edge{From: from, To: to, Weight: w})
		}
	} else {
		for e := range store.Edges() {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	if chainLimit > 0 && len(edges) > chainLimit {
		edges = edges[:chainLimit]
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		if edges == nil {
			edges = []chain.Edge{}
		}
		return writeJSON(out, edges)
	}
	if len(edges) == 0 {
		fmt.Fprintln(out, "No transitions learned yet")
		return nil
	}

	t := NewTable(out, "FROM", "TO", "WEIGHT")
	for _, e := range edges {
		t.Row(TruncateString(string(e.From), 50), TruncateString(string(e.To), 50), fmt.Sprintf("%.2f", e.Weight))
	}
	t.Flush()
	return nil
}

// sortEdges orders by weight, strongest first, then by pair.
func sortEdges(edges []chain.Edge) {
	slices.SortFunc(edges, func(a, b chain.Edge) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.From), string(b.From)); c != 0 {
			return c
		}
		return strings.Compare(string(a.To), string(b.To))
	})
}

// ChainStats summarizes a store and its file.
type ChainStats struct {
	Path        string  `json:"path"`
	Format      string  `json:"format"`
	Edges       int     `json:"edges"`
	Sources     int     `json:"sources"`
	Targets     int     `json:"targets"`
	ZeroWeight  int     `json:"zero_weight"`
	TotalWeight float64 `json:"total_weight"`
	MaxWeight   float32 `json:"max_weight"`
	WeightCap   float32 `json:"weight_cap"`
	Size        int64   `json:"size_bytes"`
	Modified    string  `json:"modified,omitempty"`
}

func chainStats(path string, store *chain.Store) ChainStats {
	st := ChainStats{
		Path:      path,
		Format:    string(chain.FormatFor(path)),
		Edges:     store.Len(),
		Sources:   len(store.Sources()),
		WeightCap: store.WeightMax(),
	}
	targets := make(map[core.SongID]struct{})
	for e := range store.Edges() {
		targets[e.To] = struct{}{}
		st.TotalWeight += float64(e.Weight)
		st.MaxWeight = max(st.MaxWeight, e.Weight)
		if e.Weight == 0 {
			st.ZeroWeight++
		}
	}
	st.Targets = len(targets)
	return st
}

func runChainStats(cmd *cobra.Command, args []string) error {
	path := cfg.Chain.StorageFile
	store, err := loadStore(cfg, false)
	if err != nil {
		return err
	}

	st := chainStats(path, store)
	var modified string
	if info, err := os.Stat(path); err == nil {
		st.Size = info.Size()
		st.Modified = info.ModTime().UTC().Format("2006-01-02T15:04:05Z")
		modified = ago(info.ModTime())
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, st)
	}

	mean := 0.0
	if st.Edges > 0 {
		mean = st.TotalWeight / float64(st.Edges)
	}
	fmt.Fprintf(out, "File:        %s (%s)\n", st.Path, st.Format)
	if modified != "" {
		fmt.Fprintf(out, "Size:        %s, saved %s\n", humanize.Bytes(uint64(st.Size)), modified)
	} else {
		fmt.Fprintln(out, "Size:        not saved yet")
	}
	fmt.Fprintf(out, "Transitions: %s\n", humanize.Comma(int64(st.Edges)))
	fmt.Fprintf(out, "Songs:       %s with outgoing, %s with incoming\n",
		humanize.Comma(int64(st.Sources)), humanize.Comma(int64(st.Targets)))
	fmt.Fprintf(out, "Weights:     mean %.2f, max %.2f of %.0f\n", mean, st.MaxWeight, st.WeightCap)
	if st.ZeroWeight > 0 {
		fmt.Fprintf(out, "Prunable:    %d (run 'markov chain prune')\n", st.ZeroWeight)
	}
	return nil
}

func runChainExport(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cfg, false)
	if err != nil {
		return err
	}
	dest := args[0]
	if err := store.Save(dest); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]any{
			"status": "exported",
			"path":   dest,
			"format": chain.FormatFor(dest),
			"edges":  store.Len(),
		})
	}
	fmt.Fprintf(out, "Exported %s transitions to %s (%s)\n", humanize.Comma(int64(store.Len())), dest, chain.FormatFor(dest))
	return nil
}

type mergeFunc func(existing, imported float32) float32

func mergeStrategy(name string) (mergeFunc, error) {
	switch name {
	case "replace":
		return func(_, imported float32) float32 { return imported }, nil
	case "max":
		return func(existing, imported float32) float32 { return max(existing, imported) }, nil
	case "sum":
		return func(existing, imported float32) float32 { return existing + imported }, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q (want replace, max, or sum)", name)
	}
}

// importChains merges every file into store. Files that fail to load are
// reported and skipped; Data counts merged transitions.
func importChains(store *chain.Store, files []string, merge mergeFunc) markoverrors.PartialResult[int] {
	var result markoverrors.PartialResult[int]
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			result.AddError(fmt.Errorf("%s: %w", f, err))
			continue
		}
		src, err := chain.Load(f, chain.Options{WeightMax: store.WeightMax()})
		if err != nil {
			result.AddError(err)
			continue
		}
		for e := range src.Edges() {
			store.SetWeight(e.From, e.To, merge(store.Weight(e.From, e.To), e.Weight))
			result.Data++
		}
	}
	return result
}

// refuseWhileRunning guards commands that rewrite the chain file.
func refuseWhileRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if err := control.NewClient(cfg.Daemon.Socket).Ping(ctx); err == nil {
		return markoverrors.WithSuggestion(
			fmt.Errorf("%w at %s", control.ErrDaemonRunning, cfg.Daemon.Socket),
			"Stop the session with 'markov stop' first, since it saves over the chain file",
		)
	}
	return nil
}

func runChainImport(cmd *cobra.Command, args []string) error {
	merge, err := mergeStrategy(chainMerge)
	if err != nil {
		return err
	}
	if err := refuseWhileRunning(); err != nil {
		return err
	}
	store, err := loadStore(cfg, false)
	if err != nil {
		return err
	}

	result := importChains(store, args, merge)
	if result.Data > 0 {
		if err := store.Save(cfg.Chain.StorageFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		errs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			errs[i] = e.Error()
		}
		if err := writeJSON(out, map[string]any{
			"status":   "imported",
			"imported": result.Data,
			"edges":    store.Len(),
			"errors":   errs,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Imported %s transitions; the chain now has %s\n",
			humanize.Comma(int64(result.Data)), humanize.Comma(int64(store.Len())))
	}

	if result.HasErrors() {
		return fmt.Errorf("some files were skipped: %s", result.ErrorSummary())
	}
	return nil
}

func runChainPrune(cmd *cobra.Command, args []string) error {
	if err := refuseWhileRunning(); err != nil {
		return err
	}
	store, err := loadStore(cfg, false)
	if err != nil {
		return err
	}

	removed := store.Prune()
	if removed > 0 {
		if err := store.Save(cfg.Chain.StorageFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]any{"status": "pruned", "removed": removed, "edges": store.Len()})
	}
	fmt.Fprintf(out, "Removed %d zero-weight transitions; %s remain\n", removed, humanize.Comma(int64(store.Len())))
	return nil
}
