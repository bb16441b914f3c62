package wizard

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/markov/internal/core"
)

// SearchScope narrows which part of a song path a query matches.
type SearchScope int

const (
	ScopeAll SearchScope = iota
	ScopeTitle
	ScopeFolder
	scopeCount
)

var scopeNames = []string{"All", "Title", "Folder"}

// SearchResult represents a search result item.
type SearchResult struct {
	Song     core.SongID
	Title    string
	Subtitle string
}

// SearchFunc is a function that performs a search.
type SearchFunc func(query string, scope SearchScope) ([]SearchResult, error)

// LibrarySearch returns a SearchFunc over a fixed song list. A song matches
// when every word of the query appears in the scoped part of its path.
func LibrarySearch(songs []core.SongID, limit int) SearchFunc {
	return func(query string, scope SearchScope) ([]SearchResult, error) {
		words := strings.Fields(strings.ToLower(query))
		if len(words) == 0 {
			return nil, nil
		}
		var results []SearchResult
		for _, s := range songs {
			var hay string
			switch scope {
			case ScopeTitle:
				hay = s.Title()
			case ScopeFolder:
				hay = s.Dir()
			default:
				hay = string(s)
			}
			if !containsAll(strings.ToLower(hay), words) {
				continue
			}
			results = append(results, SearchResult{Song: s, Title: s.Title(), Subtitle: s.Dir()})
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return results, nil
	}
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// SearchModel is the bubbletea model for the song search.
type SearchModel struct {
	input      textinput.Model
	results    []SearchResult
	cursor     int
	scope      SearchScope
	searchFunc SearchFunc
	selected   *SearchResult
	err        error
	debounce   time.Duration
	lastQuery  string
	searching  bool
	width      int
	height     int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("0"))

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Background(lipgloss.Color("237"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// NewSearchModel creates a new search model.
func NewSearchModel(searchFunc SearchFunc) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "Search the library..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return SearchModel{
		input:      ti,
		searchFunc: searchFunc,
		debounce:   200 * time.Millisecond,
		width:      80,
		height:     20,
	}
}

// Init initializes the model.
func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

type debounceMsg struct {
	query string
}

type searchResultsMsg struct {
	results []SearchResult
	err     error
}

// Update handles messages.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if len(m.results) > 0 && m.cursor < len(m.results) {
				m.selected = &m.results[m.cursor]
				return m, tea.Quit
			}
			return m, nil

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil

		case "tab":
			m.scope = (m.scope + 1) % scopeCount
			return m, m.doSearch(m.input.Value())

		case "shift+tab":
			m.scope = (m.scope + scopeCount - 1) % scopeCount
			return m, m.doSearch(m.input.Value())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4

	case debounceMsg:
		if msg.query == m.input.Value() && msg.query != m.lastQuery {
			m.lastQuery = msg.query
			m.searching = true
			return m, m.doSearch(msg.query)
		}
		return m, nil

	case searchResultsMsg:
		m.searching = false
		m.results = msg.results
		m.err = msg.err
		m.cursor = 0
		return m, nil
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	if m.input.Value() != m.lastQuery {
		query := m.input.Value()
		cmds = append(cmds, tea.Tick(m.debounce, func(time.Time) tea.Msg {
			return debounceMsg{query: query}
		}))
	}

	return m, tea.Batch(cmds...)
}

func (m SearchModel) doSearch(query string) tea.Cmd {
	scope := m.scope
	return func() tea.Msg {
		if query == "" {
			return searchResultsMsg{}
		}
		results, err := m.searchFunc(query, scope)
		return searchResultsMsg{results: results, err: err}
	}
}

// View renders the model.
func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🔍 Add a song"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	for i, name := range scopeNames {
		if SearchScope(i) == m.scope {
			b.WriteString(activeTabStyle.Render(name))
		} else {
			b.WriteString(tabStyle.Render(name))
		}
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("Error: " + m.err.Error()))
	case m.searching:
		b.WriteString("Searching...")
	case len(m.results) == 0 && m.input.Value() != "":
		b.WriteString("No songs found")
	default:
		maxResults := max(m.height-10, 5)
		for i, result := range m.results {
			if i >= maxResults {
				b.WriteString(dimStyle.Render("  ...and more"))
				break
			}
			line := result.Title
			if result.Subtitle != "" {
				line += " " + dimStyle.Render(result.Subtitle)
			}
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("▸ " + line))
			} else {
				b.WriteString(itemStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ navigate • tab switch scope • enter play • esc quit"))

	return b.String()
}

// Selected returns the selected result, or nil if none.
func (m SearchModel) Selected() *SearchResult {
	return m.selected
}

// RunSearch runs the song search and returns the selected result.
func RunSearch(searchFunc SearchFunc) (*SearchResult, error) {
	p := tea.NewProgram(NewSearchModel(searchFunc), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(SearchModel).Selected(), nil
}
