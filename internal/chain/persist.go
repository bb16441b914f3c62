package chain

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tessro/markov/internal/core"
)

// Format identifies an on-disk encoding of the store.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatTOML   Format = "toml"
)

// FormatFor picks the encoding for path from its extension: ".toml" files
// are TOML edge lists, everything else is a SQLite database.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatSQLite
}

// record is one decoded row before validation.
type record struct {
	from, to string
	weight   float64
}

// Load reads a store from path. A missing file yields an empty store. Any
// invalid record rejects the whole file.
func Load(path string, opts Options) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(opts), nil
		}
		return nil, ioError("load", path, err)
	}

	var (
		recs []record
		err  error
	)
	switch FormatFor(path) {
	case FormatTOML:
		recs, err = readTOML(path)
	default:
		recs, err = readSQLite(path)
	}
	if err != nil {
		return nil, err
	}

	s := New(opts)
	for i, r := range recs {
		if r.from == "" || r.to == "" {
			return nil, malformed(path, "record %d: empty song identifier", i+1)
		}
		if math.IsNaN(r.weight) || math.IsInf(r.weight, 0) {
			return nil, malformed(path, "record %d: weight is not finite", i+1)
		}
		if r.weight < 0 {
			return nil, malformed(path, "record %d: negative weight %v", i+1, r.weight)
		}
		if r.weight > math.MaxFloat32 {
			return nil, malformed(path, "record %d: weight %v overflows float32", i+1, r.weight)
		}
		from, to := core.SongID(r.from), core.SongID(r.to)
		if _, dup := s.Lookup(from, to); dup {
			return nil, malformed(path, "record %d: duplicate association %q -> %q", i+1, r.from, r.to)
		}
		s.SetWeight(from, to, float32(r.weight))
	}
	s.MarkClean()
	return s, nil
}

// Save writes every edge to path atomically and clears the dirty flag.
// On failure the previously saved file is left untouched.
func (s *Store) Save(path string) error {
	var err error
	switch FormatFor(path) {
	case FormatTOML:
		err = writeAtomic(path, func(tmp string) error { return writeTOML(tmp, s) })
	default:
		err = writeAtomic(path, func(tmp string) error { return writeSQLite(tmp, s) })
	}
	if err != nil {
		return err
	}
	s.MarkClean()
	return nil
}

// writeAtomic lets write fill a temporary file next to path, syncs it and
// renames it into place.
func writeAtomic(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("save", path, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ioError("save", path, err)
	}
	tmp := f.Name()
	_ = f.Close()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
			_ = os.Remove(tmp + "-journal")
		}
	}()

	if err := write(tmp); err != nil {
		return ioError("save", path, err)
	}
	if err := syncFile(tmp); err != nil {
		return ioError("save", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ioError("save", path, err)
	}
	committed = true
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
