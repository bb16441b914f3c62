package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/core"
)

var libraryCount bool

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Inspect the music library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List songs markov can play",
	Long: `List every song under library.root that matches library.patterns, as the
identifiers used by 'markov add' and the chain. An optional filter keeps
songs whose path contains every word of it.`,
	Args: cobra.ArbitraryArgs,
	RunE: runLibraryList,
}

func init() {
	libraryListCmd.Flags().BoolVar(&libraryCount, "count", false, "print only the number of songs")

	libraryCmd.AddCommand(libraryListCmd)
	rootCmd.AddCommand(libraryCmd)
}

// filterSongs keeps songs containing every word, ignoring case.
func filterSongs(songs []core.SongID, words []string) []core.SongID {
	if len(words) == 0 {
		return songs
	}
	var out []core.SongID
	for _, s := range songs {
		name := strings.ToLower(string(s))
		keep := true
		for _, w := range words {
			if !strings.Contains(name, strings.ToLower(w)) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	songs, err := lib.Songs(ctx)
	if err != nil {
		return err
	}
	songs = filterSongs(songs, args)

	out := cmd.OutOrStdout()
	if JSONOutput() {
		if libraryCount {
			return writeJSON(out, map[string]any{"root": lib.Root(), "count": len(songs)})
		}
		if songs == nil {
			songs = []core.SongID{}
		}
		return writeJSON(out, songs)
	}
	if libraryCount {
		fmt.Fprintln(out, humanize.Comma(int64(len(songs))))
		return nil
	}
	for _, s := range songs {
		fmt.Fprintln(out, s)
	}
	if Verbose() {
		fmt.Fprintf(out, "%s songs under %s\n", humanize.Comma(int64(len(songs))), lib.Root())
	}
	return nil
}

