package wizard

import (
	"os"

	"golang.org/x/term"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled    bool
	searchFunc SearchFunc
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// SetSearchFunc sets the search function for the song search.
func (i *Interactive) SetSearchFunc(fn SearchFunc) {
	i.searchFunc = fn
}

// IsTerminal returns true if both stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptSearch launches the song search if interactive mode is available.
// Returns the selected result, or nil if cancelled or not interactive.
func (i *Interactive) PromptSearch() (*SearchResult, error) {
	if !i.CanInteract() || i.searchFunc == nil {
		return nil, nil
	}
	return RunSearch(i.searchFunc)
}

// PromptChoice launches a picker if interactive mode is available.
// Returns the selected option, or nil if cancelled or not interactive.
func (i *Interactive) PromptChoice(title string, options []Option) (*Option, error) {
	if !i.CanInteract() || len(options) == 0 {
		return nil, nil
	}
	return RunPicker(title, options)
}

// NeedsSong returns true if a song argument is required but missing.
func NeedsSong(args []string) bool {
	return len(args) == 0
}

// ActiveOption returns the option marked active, if exactly one is.
func ActiveOption(options []Option) *Option {
	var active *Option
	count := 0
	for i := range options {
		if options[i].Active {
			active = &options[i]
			count++
		}
	}
	if count == 1 {
		return active
	}
	return nil
}
