package chain

import (
	"errors"
	"fmt"
)

// Storage error kinds. A *StorageError matches exactly one of them with errors.Is.
var (
	ErrIO        = errors.New("transition store i/o failed")
	ErrMalformed = errors.New("transition store is malformed")
)

// StorageError describes a failed load or save.
type StorageError struct {
	Op   string // "load" or "save"
	Path string
	Kind error // ErrIO or ErrMalformed
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func ioError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Kind: ErrIO, Err: err}
}

func malformed(path string, format string, args ...any) error {
	return &StorageError{Op: "load", Path: path, Kind: ErrMalformed, Err: fmt.Errorf(format, args...)}
}
