package chain

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const tomlFormatVersion = 1

// tomlFile is the text encoding of a store:
//
//	version = 1
//
//	[[association]]
//	song = "Artist/Album/01.flac"
//	next = "Artist/Album/02.flac"
//	weight = 1.5
type tomlFile struct {
	Version     int          `toml:"version"`
	Association []tomlRecord `toml:"association"`
}

// Pointer fields distinguish a missing key from a zero value.
type tomlRecord struct {
	Song   *string  `toml:"song"`
	Next   *string  `toml:"next"`
	Weight *float64 `toml:"weight"`
}

type tomlOut struct {
	Version     int       `toml:"version"`
	Association []tomlRow `toml:"association"`
}

type tomlRow struct {
	Song   string  `toml:"song"`
	Next   string  `toml:"next"`
	Weight float64 `toml:"weight"`
}

func readTOML(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("load", path, err)
	}

	var doc tomlFile
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, malformed(path, "decode: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, malformed(path, "unknown key %q", undecoded[0].String())
	}
	if doc.Version > tomlFormatVersion {
		return nil, malformed(path, "unsupported format version %d", doc.Version)
	}

	recs := make([]record, 0, len(doc.Association))
	for i, a := range doc.Association {
		if a.Song == nil || a.Next == nil || a.Weight == nil {
			return nil, malformed(path, "association %d: song, next and weight are required", i+1)
		}
		recs = append(recs, record{from: *a.Song, to: *a.Next, weight: *a.Weight})
	}
	return recs, nil
}

func writeTOML(path string, s *Store) error {
	out := tomlOut{
		Version:     tomlFormatVersion,
		Association: make([]tomlRow, 0, s.Len()),
	}
	for e := range s.Edges() {
		out.Association = append(out.Association, tomlRow{
			Song:   string(e.From),
			Next:   string(e.To),
			Weight: float64(e.Weight),
		})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
