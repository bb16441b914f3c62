package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/markov/internal/browser"
	"github.com/tessro/markov/internal/core"
	"github.com/tessro/markov/internal/selector"
	"github.com/tessro/markov/internal/session"
	"github.com/tessro/markov/internal/tui/components"
	"github.com/tessro/markov/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelNext
	PanelLibrary
	PanelHistory
	panelCount
)

const (
	searchDebounce = 300 * time.Millisecond
	requestTimeout = 5 * time.Second
	maxResults     = 10
)

// App holds what the TUI talks to.
type App struct {
	Controller  session.Controller
	Browser     *browser.Browser // optional
	Library     core.Library     // optional; enables search
	RefreshRate time.Duration
	Now         func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Model is the main TUI model
type Model struct {
	app          *App
	width        int
	height       int
	focusedPanel Panel

	snap *session.Snapshot

	// Components
	nowPlaying  *components.NowPlaying
	nextView    *components.Next
	libraryView *components.Library
	historyView *components.History

	// Overlays
	showHelp bool

	// Search state
	showSearch    bool
	searchInput   textinput.Model
	searchResults []core.SongID
	searchCursor  int
	searching     bool
	lastQuery     string
	searchErr     error

	// Error handling
	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates a new TUI model
func NewModel(app *App) Model {
	if app.RefreshRate <= 0 {
		app.RefreshRate = 500 * time.Millisecond
	}

	ti := textinput.New()
	ti.Placeholder = "Search songs..."
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		app:          app,
		focusedPanel: PanelNowPlaying,
		nowPlaying:   components.NewNowPlaying(),
		nextView:     components.NewNext(),
		libraryView:  components.NewLibrary(),
		historyView:  components.NewHistory(),
		searchInput:  ti,
	}
}

// Messages
type tickMsg time.Time
type snapshotMsg session.Snapshot
type errMsg struct{ err error }

type searchDebounceMsg struct{ query string }
type searchResultsMsg struct {
	query   string
	results []core.SongID
	err     error
}

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.app.RefreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		snap, err := m.app.Controller.Snapshot(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

// do runs a session command and reports the resulting snapshot.
func (m Model) do(cmd session.Command) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		snap, err := m.app.Controller.Do(ctx, cmd)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) doSearch(query string) tea.Cmd {
	lib := m.app.Library
	return func() tea.Msg {
		if query == "" || lib == nil {
			return searchResultsMsg{query: query}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		songs, err := lib.Songs(ctx)
		if err != nil {
			return searchResultsMsg{query: query, err: err}
		}
		return searchResultsMsg{query: query, results: matchSongs(songs, query, maxResults+1)}
	}
}

// matchSongs returns up to limit songs whose path contains every word of
// query, ignoring case.
func matchSongs(songs []core.SongID, query string, limit int) []core.SongID {
	words := strings.Fields(strings.ToLower(query))
	var out []core.SongID
	for _, s := range songs {
		name := strings.ToLower(string(s))
		ok := true
		for _, w := range words {
			if !strings.Contains(name, w) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.fetchSnapshot())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.tick(), m.fetchSnapshot())

	case snapshotMsg:
		if m.app.now().After(m.errorExpiry) {
			m.lastError = nil
		}
		snap := session.Snapshot(msg)
		if m.snap == nil || m.snap.Playback.Current != snap.Playback.Current {
			m.nextView = components.NewNext()
		}
		m.snap = &snap
		return m, nil

	case errMsg:
		m.lastError = msg.err
		m.errorExpiry = m.app.now().Add(5 * time.Second)
		return m, nil

	case searchDebounceMsg:
		if msg.query == m.searchInput.Value() && msg.query != m.lastQuery {
			m.lastQuery = msg.query
			m.searching = true
			return m, m.doSearch(msg.query)
		}

	case searchResultsMsg:
		if msg.query != m.lastQuery {
			return m, nil
		}
		m.searching = false
		m.searchResults = msg.results
		m.searchErr = msg.err
		m.searchCursor = 0
		return m, nil
	}

	// Forward other messages to textinput when search is active
	if m.showSearch {
		var inputCmd tea.Cmd
		m.searchInput, inputCmd = m.searchInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showSearch {
		return m.handleSearchKeyPress(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		if m.app.Library == nil {
			return m, nil
		}
		m.showSearch = true
		m.searchInput.SetValue("")
		m.searchInput.Focus()
		m.searchResults = nil
		m.searchCursor = 0
		m.lastQuery = ""
		m.searchErr = nil
		return m, textinput.Blink

	case "tab":
		m.focusedPanel = (m.focusedPanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.focusedPanel = (m.focusedPanel + panelCount - 1) % panelCount
		return m, nil
	}

	// Panel-specific keys take precedence over the letters they share
	if m.focusedPanel == PanelLibrary && m.app.Browser != nil {
		if model, cmd, ok := m.handleLibraryKey(msg); ok {
			return model, cmd
		}
	}
	if m.focusedPanel == PanelNext {
		switch msg.String() {
		case "j", "down":
			m.nextView.ScrollDown()
			return m, nil
		case "k", "up":
			m.nextView.ScrollUp()
			return m, nil
		}
	}

	if cmd, ok := m.keyCommand(msg.String()); ok {
		return m, m.do(cmd)
	}
	return m, nil
}

// keyCommand maps playback keys to session commands.
func (m Model) keyCommand(key string) (session.Command, bool) {
	switch key {
	case " ":
		return session.Command{Op: session.OpTogglePause}, true
	case "n":
		return session.Command{Op: session.OpNext}, true
	case "p":
		return session.Command{Op: session.OpPrev}, true
	case "l":
		return session.Command{Op: session.OpLike}, true
	case "d":
		return session.Command{Op: session.OpDislike}, true
	case "t":
		return session.Command{Op: session.OpTired}, true
	case "r":
		return session.Command{Op: session.OpRandom}, true
	case "s":
		return m.toggleMode(selector.NameShuffle), true
	case "R":
		return m.toggleMode(selector.NameRepeat), true
	case "o":
		return m.toggleMode(selector.NameLoop), true
	case "+", "=":
		return session.Command{Op: session.OpVolumeStep, Value: 1}, true
	case "-":
		return session.Command{Op: session.OpVolumeStep, Value: -1}, true
	case "m":
		return session.Command{Op: session.OpMute}, true
	case "]":
		return session.Command{Op: session.OpSeekStep, Value: 1}, true
	case "[":
		return session.Command{Op: session.OpSeekStep, Value: -1}, true
	case "{":
		return session.Command{Op: session.OpSeek, Seek: &core.Seek{Seconds: 0, Absolute: true}}, true
	case "}":
		end := core.SeekEnd()
		return session.Command{Op: session.OpSeek, Seek: &end}, true
	case "S":
		return session.Command{Op: session.OpStop}, true
	}
	return session.Command{}, false
}

// toggleMode switches to mode, or back to the chain if mode is active.
func (m Model) toggleMode(mode string) session.Command {
	if m.snap != nil && m.snap.Mode == mode {
		mode = selector.NameMarkov
	}
	return session.Command{Op: session.OpMode, Mode: mode}
}

func (m Model) handleLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	b := m.app.Browser
	switch msg.String() {
	case "j", "down":
		b.Down()
	case "k", "up":
		b.Up()
	case "h", "left", "backspace":
		if err := b.Left(); err != nil {
			return m, func() tea.Msg { return errMsg{err} }, true
		}
	case "right", "enter", "a":
		song, ok, err := b.Right()
		if err != nil {
			return m, func() tea.Msg { return errMsg{err} }, true
		}
		if ok {
			return m, m.do(session.Command{Op: session.OpAdd, Song: song}), true
		}
	case "ctrl+r":
		if err := b.Reload(); err != nil {
			return m, func() tea.Msg { return errMsg{err} }, true
		}
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m Model) handleSearchKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg.String() {
	case "esc":
		m.showSearch = false
		m.searchInput.Blur()
		return m, nil

	case "enter":
		if m.searchCursor < len(m.searchResults) {
			song := m.searchResults[m.searchCursor]
			m.showSearch = false
			m.searchInput.Blur()
			return m, m.do(session.Command{Op: session.OpAdd, Song: song})
		}
		return m, nil

	case "up", "ctrl+p":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.searchCursor < min(len(m.searchResults), maxResults)-1 {
			m.searchCursor++
		}
		return m, nil
	}

	var inputCmd tea.Cmd
	m.searchInput, inputCmd = m.searchInput.Update(msg)
	cmds = append(cmds, inputCmd)

	// Debounce search
	if query := m.searchInput.Value(); query != m.lastQuery {
		cmds = append(cmds, tea.Tick(searchDebounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{query: query}
		}))
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.showSearch {
		return m.renderSearch()
	}

	// Left: Now Playing (top), Up Next (bottom)
	// Right: Library (top), History (bottom)
	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 40 / 100
	bottomHeight := m.height - topHeight - 2

	var (
		candidates []selector.Candidate
		history    []core.HistoryEntry
		mode       = selector.NameMarkov
		tired      = map[core.SongID]bool{}
	)
	if m.snap != nil {
		candidates = m.snap.Next
		history = m.snap.History
		mode = m.snap.Mode
		for _, t := range m.snap.Tired {
			tired[t.Song] = true
		}
	}

	nowPlaying := m.nowPlaying.Render(m.snap, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	nextView := m.nextView.Render(candidates, mode, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelNext)
	libraryView := m.libraryView.Render(m.app.Browser, rightWidth-2, topHeight-2, m.focusedPanel == PanelLibrary)
	historyView := m.historyView.Render(history, tired, m.app.now(), rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, nextView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, libraryView, historyView)

	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:search  space:pause  n:next  p:prev  l/d/t:like/dislike/tired  tab:switch panel")

	if m.lastError != nil {
		status = styles.ErrorText.Render("Error: " + errorText(m.lastError))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, session.ErrStopped):
		return "session stopped, press q to quit"
	case errors.Is(err, session.ErrNoHistory):
		return "no earlier song"
	case errors.Is(err, selector.ErrEmptyLibrary):
		return "library is empty"
	}
	return err.Error()
}

func (m Model) renderHelp() string {
	title := "Markov - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Search library
  Tab          Next panel
  Shift+Tab    Previous panel

  Playback
  ────────
  Space        Pause/Resume
  n / p        Next / previous song
  r            Random song
  S            Stop session
  + / -        Volume up / down
  m            Mute
  [ / ]        Seek back / forward
  { / }        Seek to start / end

  Chain
  ─────
  l            Like this transition
  d            Dislike this transition
  t            Tired of this song
  s / R / o    Toggle shuffle / repeat / loop

  Library Panel
  ─────────────
  j/k, ↑/↓     Move
  h, ←         Parent directory
  Enter, →, a  Open directory or play song
  Ctrl+R       Reload

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderSearch() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Primary)
	b.WriteString(titleStyle.Render("Search"))
	b.WriteString("\n\n")

	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	selectedStyle := lipgloss.NewStyle().Background(styles.Border)

	switch {
	case m.searchErr != nil:
		b.WriteString(styles.ErrorText.Render("Error: " + m.searchErr.Error()))
	case m.searching:
		b.WriteString(styles.Muted.Render("Searching..."))
	case len(m.searchResults) == 0 && m.searchInput.Value() != "" && m.lastQuery != "":
		b.WriteString(styles.Muted.Render("No results found"))
	default:
		for i, song := range m.searchResults {
			if i >= maxResults {
				b.WriteString(styles.Muted.Render("  ...and more"))
				break
			}

			line := song.Title()
			if dir := song.Dir(); dir != "" {
				line += " " + styles.Muted.Render(dir)
			}

			if i == m.searchCursor {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.Muted.Render("↑/↓:nav  Enter:play  Esc:close"))

	content := lipgloss.NewStyle().
		Width(60).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run starts the TUI application. It returns when the user quits or ctx is
// done.
func Run(ctx context.Context, app *App) error {
	model := NewModel(app)
	p := tea.NewProgram(model, tea.WithAltScreen())

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
