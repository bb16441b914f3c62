package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tessro/markov/internal/chain"
	"github.com/tessro/markov/internal/control"
	"github.com/tessro/markov/internal/library"
	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/session"
)

// Error types for failures that only the command line sees.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrSongNotFound   = errors.New("song not in library")
)

// MarkovError wraps an error with a user-friendly suggestion.
type MarkovError struct {
	Err        error
	Suggestion string
}

func (e *MarkovError) Error() string {
	return e.Err.Error()
}

func (e *MarkovError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &MarkovError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var markovErr *MarkovError
	if errors.As(err, &markovErr) && markovErr.Suggestion != "" {
		return markovErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	// Store errors
	if errors.Is(err, chain.ErrMalformed) {
		return "The chain file is damaged. Restore a backup, or start over with --fresh (the file is replaced on the next save)"
	}
	if errors.Is(err, chain.ErrIO) {
		return "Check that chain.storage_file points to a readable location"
	}

	// Library errors
	if errors.Is(err, selector.ErrEmptyLibrary) {
		return "No songs found. Set library.root or library.patterns with 'markov config set'"
	}
	if errors.Is(err, library.ErrNoRoot) {
		return "Set library.root to your music directory with 'markov config set library.root <dir>'"
	}
	if errors.Is(err, ErrSongNotFound) {
		return "Run 'markov library list' to see available songs"
	}

	// Session errors
	if errors.Is(err, session.ErrStopped) {
		return "The session has stopped. Start a new one with 'markov play' or 'markov daemon'"
	}
	if errors.Is(err, session.ErrNoHistory) {
		return "Nothing has played before this song yet"
	}

	// Daemon errors
	if errors.Is(err, control.ErrNoDaemon) || strings.Contains(errStr, "connection refused") {
		return "Start the daemon with 'markov daemon', or run 'markov play' for a local session"
	}
	if errors.Is(err, control.ErrDaemonRunning) {
		return "Another markov daemon is running. Control it with 'markov status' or stop it with 'markov stop'"
	}

	// Player errors
	if errors.Is(err, exec.ErrNotFound) || strings.Contains(errStr, "executable file not found") {
		return "Install mpv, or set player.mpv_path to its location"
	}

	// Config errors
	if errors.Is(err, ErrConfigNotFound) {
		return "Run 'markov config init' to create a configuration file"
	}
	if errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Run 'markov config show' to review your configuration"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:\n", len(p.Errors))
	for i, err := range p.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}
