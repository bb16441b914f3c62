package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tessro/markov/internal/core"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSongs(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"Artist/Album/01 Intro.flac",
		"Artist/Album/02 Song.mp3",
		"loose.ogg",
		"notes.txt",
		"cover.jpg",
	)

	lib, err := New(root, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	songs, err := lib.Songs(context.Background())
	if err != nil {
		t.Fatalf("Songs() error = %v", err)
	}

	want := []core.SongID{"Artist/Album/01 Intro.flac", "Artist/Album/02 Song.mp3", "loose.ogg"}
	if len(songs) != len(want) {
		t.Fatalf("Songs() = %v, want %v", songs, want)
	}
	for i := range want {
		if songs[i] != want[i] {
			t.Errorf("Songs()[%d] = %q, want %q", i, songs[i], want[i])
		}
	}
}

func TestSongsCachedUntilRefresh(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.mp3")
	lib, _ := New(root, nil)
	ctx := context.Background()

	songs, _ := lib.Songs(ctx)
	if len(songs) != 1 {
		t.Fatalf("Songs() = %v, want 1 song", songs)
	}

	touch(t, root, "b.mp3")
	songs, _ = lib.Songs(ctx)
	if len(songs) != 1 {
		t.Errorf("Songs() = %v before Refresh, want cached listing", songs)
	}

	n, err := lib.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Refresh() = %d, want 2", n)
	}
}

func TestCustomPatterns(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.mp3", "b.flac", "dir/c.mp3")
	lib, err := New(root, []string{"*.mp3", "**/*.mp3"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	songs, _ := lib.Songs(context.Background())
	if len(songs) != 2 {
		t.Errorf("Songs() = %v, want a.mp3 and dir/c.mp3 once each", songs)
	}
}

func TestInvalidPattern(t *testing.T) {
	if _, err := New(t.TempDir(), []string{"[unclosed"}); err == nil {
		t.Error("New() with a bad pattern should fail")
	}
}

func TestMissingRoot(t *testing.T) {
	lib, _ := New(filepath.Join(t.TempDir(), "nope"), nil)
	_, err := lib.Songs(context.Background())
	if !errors.Is(err, ErrNoRoot) {
		t.Errorf("Songs() error = %v, want ErrNoRoot", err)
	}
}

func TestPathAndMatch(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "x/y.mp3")
	lib, _ := New(root, nil)

	if got, want := lib.Path("x/y.mp3"), filepath.Join(root, "x", "y.mp3"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if !lib.Match("deep/er/song.opus") {
		t.Error("Match(opus) = false")
	}
	if lib.Match("readme.md") {
		t.Error("Match(md) = true")
	}

	ok, err := lib.Contains(context.Background(), "x/y.mp3")
	if err != nil || !ok {
		t.Errorf("Contains() = %v, %v; want true", ok, err)
	}
	ok, _ = lib.Contains(context.Background(), "x/z.mp3")
	if ok {
		t.Error("Contains(missing) = true")
	}
}

func TestSongFromPath(t *testing.T) {
	root := t.TempDir()
	lib, err := New(root, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	id, ok := lib.Song(lib.Path("Artist/Album/02 Song.mp3"))
	if !ok || id != "Artist/Album/02 Song.mp3" {
		t.Errorf("Song(Path(x)) = %q, %v; want the same id", id, ok)
	}
	if _, ok := lib.Song(filepath.Join(root, "notes.txt")); ok {
		t.Error("Song() accepted a file the patterns exclude")
	}
	if _, ok := lib.Song(filepath.Join(filepath.Dir(root), "elsewhere.mp3")); ok {
		t.Error("Song() accepted a path outside the root")
	}
	if _, ok := lib.Song("relative.mp3"); ok {
		t.Error("Song() accepted a relative path")
	}
}
