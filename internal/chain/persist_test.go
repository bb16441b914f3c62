package chain

import (
	"database/sql"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessro/markov/internal/core"
)

func sampleStore(t *testing.T, seed uint64) *Store {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	s := New(Options{WeightMax: 50})
	songs := []core.SongID{"A/one.mp3", "A/two.mp3", "B/three.flac", "B/Three.flac", "weird \"quoted\" name.ogg", "ünïcode.opus"}
	for i := 0; i < 40; i++ {
		from := songs[rng.IntN(len(songs))]
		to := songs[rng.IntN(len(songs))]
		s.SetWeight(from, to, rng.Float32()*60)
	}
	s.SetWeight("zero", "edge", 0)
	return s
}

func assertSameEdges(t *testing.T, got, want *Store) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for e := range want.Edges() {
		w, ok := got.Lookup(e.From, e.To)
		if !ok {
			t.Errorf("edge %q -> %q missing after round trip", e.From, e.To)
			continue
		}
		if w != e.Weight {
			t.Errorf("edge %q -> %q weight = %v, want %v", e.From, e.To, w, e.Weight)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"chain.db", "chain.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			orig := sampleStore(t, 7)

			if err := orig.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if orig.Dirty() {
				t.Error("Dirty() = true after Save")
			}

			loaded, err := Load(path, Options{WeightMax: 50})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Dirty() {
				t.Error("Dirty() = true after Load")
			}
			assertSameEdges(t, loaded, orig)

			// Saving the loaded copy and loading it again is stable too.
			if err := loaded.Save(path); err != nil {
				t.Fatalf("second Save() error = %v", err)
			}
			again, err := Load(path, Options{WeightMax: 50})
			if err != nil {
				t.Fatalf("second Load() error = %v", err)
			}
			assertSameEdges(t, again, orig)
		})
	}
}

func TestRoundTripIndependentOfInsertionOrder(t *testing.T) {
	edges := []Edge{{"a", "b", 1.25}, {"b", "c", 2}, {"c", "a", 0.1}, {"a", "c", 7}}

	forward := New(Options{})
	for _, e := range edges {
		forward.SetWeight(e.From, e.To, e.Weight)
	}
	backward := New(Options{})
	for i := len(edges) - 1; i >= 0; i-- {
		backward.SetWeight(edges[i].From, edges[i].To, edges[i].Weight)
	}

	dir := t.TempDir()
	p1, p2 := filepath.Join(dir, "f.db"), filepath.Join(dir, "b.db")
	if err := forward.Save(p1); err != nil {
		t.Fatal(err)
	}
	if err := backward.Save(p2); err != nil {
		t.Fatal(err)
	}
	l1, err := Load(p1, Options{})
	if err != nil {
		t.Fatal(err)
	}
	l2, err := Load(p2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	assertSameEdges(t, l1, l2)
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.db"), Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want empty store", s.Len())
	}
}

func TestLoadClampsToWeightMax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.toml")
	s := New(Options{WeightMax: 100})
	s.SetWeight("a", "b", 80)
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path, Options{WeightMax: 10})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if w := loaded.Weight("a", "b"); w != 10 {
		t.Errorf("Weight() = %v, want 10", w)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMalformedTOML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative weight", "[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = -1.0\n"},
		{"duplicate pair", "[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = 1.0\n[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = 2.0\n"},
		{"string weight", "[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = \"heavy\"\n"},
		{"missing weight", "[[association]]\nsong = \"a\"\nnext = \"b\"\n"},
		{"empty song", "[[association]]\nsong = \"\"\nnext = \"b\"\nweight = 1.0\n"},
		{"nan weight", "[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = nan\n"},
		{"unknown key", "[[association]]\nsong = \"a\"\nnext = \"b\"\nweight = 1.0\nmood = \"sad\"\n"},
		{"future version", "version = 99\n"},
		{"garbage", "this is not toml ==="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "chain.toml", tt.content)
			s, err := Load(path, Options{})
			if err == nil {
				t.Fatalf("Load() = %d edges, want error", s.Len())
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Load() error = %v, want ErrMalformed", err)
			}
			if errors.Is(err, ErrIO) {
				t.Errorf("Load() error matches both kinds: %v", err)
			}
		})
	}
}

func TestLoadMalformedSQLite(t *testing.T) {
	tests := []struct {
		name  string
		setup string
	}{
		{"negative weight", `INSERT INTO associations VALUES ('a', 'b', -0.5)`},
		{"duplicate pair", `INSERT INTO associations VALUES ('a', 'b', 1.0), ('a', 'b', 2.0)`},
		{"text weight", `INSERT INTO associations VALUES ('a', 'b', 'heavy')`},
		{"blob song", `INSERT INTO associations VALUES (x'00ff', 'b', 1.0)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chain.db")
			db, err := sql.Open("sqlite", path)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := db.Exec(schema); err != nil {
				t.Fatal(err)
			}
			if _, err := db.Exec(tt.setup); err != nil {
				t.Fatal(err)
			}
			db.Close()

			_, err = Load(path, Options{})
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Load() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestLoadNotADatabase(t *testing.T) {
	for _, content := range []string{"", "short", strings.Repeat("not sqlite at all ", 10)} {
		path := writeFile(t, "chain.db", content)
		_, err := Load(path, Options{})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Load(%q...) error = %v, want ErrMalformed", truncate(content), err)
		}
	}
}

func TestLoadMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE other (x INTEGER)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Load(path, Options{}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Load() error = %v, want ErrMalformed", err)
	}
}

func TestLoadUnreadable(t *testing.T) {
	// A directory where the file should be cannot be read.
	dir := filepath.Join(t.TempDir(), "chain.db")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir, Options{})
	if !errors.Is(err, ErrIO) {
		t.Errorf("Load() error = %v, want ErrIO", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "load" || se.Path != dir {
		t.Errorf("Load() error = %#v, want *StorageError for %s", err, dir)
	}
}

func TestSaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.toml")

	s := New(Options{})
	s.SetWeight("a", "b", 1)
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// The parent of the target is a regular file, so the save cannot create
	// its temporary file.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s.SetWeight("a", "b", 5)
	err = s.Save(filepath.Join(blocker, "chain.toml"))
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Save() error = %v, want ErrIO", err)
	}
	if !s.Dirty() {
		t.Error("Dirty() = false after failed save")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("previous file changed after failed save")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := sampleStore(t, 3)
	for _, name := range []string{"chain.db", "chain.toml"} {
		if err := s.Save(filepath.Join(dir, name)); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Errorf("directory has %d entries, want 2", len(entries))
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"chain.toml":           FormatTOML,
		"CHAIN.TOML":           FormatTOML,
		"chain.db":             FormatSQLite,
		"x-markov-music.db":    FormatSQLite,
		"no-extension":         FormatSQLite,
		"/a/b.toml/chain.json": FormatSQLite,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func truncate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
