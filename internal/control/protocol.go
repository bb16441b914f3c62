// Package control exposes a running session over a unix socket.
//
// The protocol is newline-delimited JSON. Each request carries a command and
// an id; each response echoes the id with the session snapshot taken right
// after the command ran, or an error code.
package control

import (
	"errors"

	"github.com/google/uuid"

	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/session"
)

// Request is one command sent to the daemon.
type Request struct {
	ID      uuid.UUID       `json:"id"`
	Command session.Command `json:"command"`
}

// Response answers a Request.
type Response struct {
	ID       uuid.UUID         `json:"id"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
	Code     Code              `json:"code,omitempty"`
}

// Code classifies a failed request so clients can recover the sentinel error.
type Code string

const (
	CodeStopped        Code = "stopped"
	CodeNoHistory      Code = "no_history"
	CodeUnknownCommand Code = "unknown_command"
	CodeNoSong         Code = "no_song"
	CodeEmptyLibrary   Code = "empty_library"
	CodeBadRequest     Code = "bad_request"
	CodeInternal       Code = "internal"
)

var codeErrors = []struct {
	code Code
	err  error
}{
	{CodeStopped, session.ErrStopped},
	{CodeNoHistory, session.ErrNoHistory},
	{CodeUnknownCommand, session.ErrUnknownCommand},
	{CodeNoSong, session.ErrNoSong},
	{CodeEmptyLibrary, selector.ErrEmptyLibrary},
}

// ErrBadRequest is returned when the daemon could not parse a request.
var ErrBadRequest = errors.New("bad request")

// CodeFor classifies err.
func CodeFor(err error) Code {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	if errors.Is(err, ErrBadRequest) {
		return CodeBadRequest
	}
	return CodeInternal
}

// RemoteError is an error reported by the daemon. It unwraps to the matching
// sentinel so errors.Is works across the socket.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	for _, ce := range codeErrors {
		if ce.code == e.Code {
			return ce.err
		}
	}
	if e.Code == CodeBadRequest {
		return ErrBadRequest
	}
	return nil
}
