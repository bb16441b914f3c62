package core

import (
	"path"
	"strings"
)

// SongID identifies a playable track by its slash-separated path relative
// to the library root. Identity is exact and case-sensitive.
type SongID string

// String returns the identifier as a plain string.
func (id SongID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id SongID) IsZero() bool {
	return id == ""
}

// Title returns a display name: the file name without its extension.
func (id SongID) Title() string {
	base := path.Base(string(id))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Dir returns the directory part of the identifier, or "" for songs at the
// library root.
func (id SongID) Dir() string {
	d := path.Dir(string(id))
	if d == "." {
		return ""
	}
	return d
}
