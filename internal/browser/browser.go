// Package browser walks the library directory tree with a cursor, the way a
// listener picks a song by hand.
package browser

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tessro/markov/internal/core"
)

// Entry is one row of a directory listing.
type Entry struct {
	Name  string      `json:"name"`
	Song  core.SongID `json:"song"`
	IsDir bool        `json:"is_dir"`
}

// Browser is a cursor over one directory of the library at a time. It never
// leaves the root.
type Browser struct {
	root    string
	filter  func(core.SongID) bool
	dir     string
	entries []Entry
	cursor  int
}

// New opens a browser at root. Files are listed only when filter accepts
// them; a nil filter lists every file. Hidden entries are skipped.
func New(root string, filter func(core.SongID) bool) (*Browser, error) {
	b := &Browser{root: root, filter: filter}
	if err := b.load(""); err != nil {
		return nil, err
	}
	return b, nil
}

// Dir returns the directory being listed, relative to the root. The root
// itself is "".
func (b *Browser) Dir() string { return b.dir }

// Entries returns the current listing: directories first, then files, each
// sorted by name.
func (b *Browser) Entries() []Entry { return b.entries }

// Cursor returns the index of the highlighted entry.
func (b *Browser) Cursor() int { return b.cursor }

// Current returns the highlighted entry.
func (b *Browser) Current() (Entry, bool) {
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[b.cursor], true
}

// Up moves the cursor to the previous entry, stopping at the top.
func (b *Browser) Up() {
	if b.cursor > 0 {
		b.cursor--
	}
}

// Down moves the cursor to the next entry, stopping at the bottom.
func (b *Browser) Down() {
	if b.cursor < len(b.entries)-1 {
		b.cursor++
	}
}

// Left leaves the current directory and highlights it in its parent. At the
// root it does nothing.
func (b *Browser) Left() error {
	if b.dir == "" {
		return nil
	}
	from := b.dir
	parent := path.Dir(b.dir)
	if parent == "." {
		parent = ""
	}
	if err := b.load(parent); err != nil {
		return err
	}
	for i, e := range b.entries {
		if e.IsDir && string(e.Song) == from {
			b.cursor = i
			break
		}
	}
	return nil
}

// Right enters the highlighted directory. On a file it returns the song and
// true so the caller can play it.
func (b *Browser) Right() (core.SongID, bool, error) {
	e, ok := b.Current()
	if !ok {
		return "", false, nil
	}
	if !e.IsDir {
		return e.Song, true, nil
	}
	return "", false, b.load(string(e.Song))
}

// Reload lists the current directory again, keeping the cursor in range.
func (b *Browser) Reload() error {
	cursor := b.cursor
	if err := b.load(b.dir); err != nil {
		return err
	}
	b.cursor = min(cursor, max(0, len(b.entries)-1))
	return nil
}

func (b *Browser) load(dir string) error {
	items, err := os.ReadDir(filepath.Join(b.root, filepath.FromSlash(dir)))
	if err != nil {
		return fmt.Errorf("browse %q: %w", dir, err)
	}

	var dirs, files []Entry
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		rel := core.SongID(path.Join(dir, name))
		if item.IsDir() {
			dirs = append(dirs, Entry{Name: name, Song: rel, IsDir: true})
			continue
		}
		if b.filter != nil && !b.filter(rel) {
			continue
		}
		files = append(files, Entry{Name: name, Song: rel})
	}
	byName := func(a, c Entry) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(c.Name)) }
	slices.SortFunc(dirs, byName)
	slices.SortFunc(files, byName)

	b.dir = dir
	b.entries = append(dirs, files...)
	b.cursor = 0
	return nil
}
