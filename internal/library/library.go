// Package library enumerates the songs under a music directory.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tessro/markov/internal/core"
)

// DefaultPatterns match common audio files anywhere under the root.
var DefaultPatterns = []string{"**/*.{mp3,flac,ogg,opus,m4a,wav}"}

// ErrNoRoot is returned when the library directory does not exist.
var ErrNoRoot = errors.New("library directory not found")

// Dir is a library rooted at a directory. Song identifiers are slash
// separated paths relative to the root. The listing is cached until Refresh.
type Dir struct {
	root     string
	patterns []string
	fsys     fs.FS

	mu     sync.Mutex
	songs  []core.SongID
	loaded bool
}

// New creates a library over root. Patterns default to DefaultPatterns.
func New(root string, patterns []string) (*Dir, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid library pattern: %q", p)
		}
	}
	return &Dir{
		root:     root,
		patterns: slices.Clone(patterns),
		fsys:     os.DirFS(root),
	}, nil
}

// Root returns the library directory.
func (d *Dir) Root() string {
	return d.root
}

// Songs returns every matching file, sorted. The first call walks the root.
func (d *Dir) Songs(ctx context.Context) ([]core.SongID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		if err := d.scan(ctx); err != nil {
			return nil, err
		}
	}
	return d.songs, nil
}

// Refresh rescans the root and returns the new song count.
func (d *Dir) Refresh(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.scan(ctx); err != nil {
		return 0, err
	}
	return len(d.songs), nil
}

func (d *Dir) scan(ctx context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoRoot, d.root)
	}

	seen := make(map[string]struct{})
	var songs []core.SongID
	for _, pattern := range d.patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		matches, err := doublestar.Glob(d.fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("scan library: %w", err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			songs = append(songs, core.SongID(m))
		}
	}
	slices.Sort(songs)
	d.songs = songs
	d.loaded = true
	return nil
}

// Path resolves a song identifier to a file path.
func (d *Dir) Path(id core.SongID) string {
	return filepath.Join(d.root, filepath.FromSlash(string(id)))
}

// Song maps a file path back to its identifier. It fails for paths outside
// the root or not matched by the patterns.
func (d *Dir) Song(path string) (core.SongID, bool) {
	if !filepath.IsAbs(path) {
		return "", false
	}
	root, err := filepath.Abs(d.root)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	id := core.SongID(filepath.ToSlash(rel))
	if !d.Match(id) {
		return "", false
	}
	return id, true
}

// Match reports whether a relative path would be part of the library.
func (d *Dir) Match(id core.SongID) bool {
	for _, p := range d.patterns {
		if ok, _ := doublestar.Match(p, string(id)); ok {
			return true
		}
	}
	return false
}

// Contains reports whether id is in the current listing.
func (d *Dir) Contains(ctx context.Context, id core.SongID) (bool, error) {
	songs, err := d.Songs(ctx)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(songs, id)
	return found, nil
}

var _ core.Library = (*Dir)(nil)

var _ core.Resolver = (*Dir)(nil)
