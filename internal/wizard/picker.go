package wizard

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Option is one entry of a Picker.
type Option struct {
	Value  string
	Label  string
	Detail string
	Active bool
}

// PickerModel is the bubbletea model for choosing one option from a list.
type PickerModel struct {
	title    string
	options  []Option
	cursor   int
	selected *Option
	width    int
	height   int
}

var activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

// NewPickerModel creates a picker with the cursor on the active option.
func NewPickerModel(title string, options []Option) PickerModel {
	m := PickerModel{
		title:   title,
		options: options,
		width:   80,
		height:  20,
	}
	for i, o := range options {
		if o.Active {
			m.cursor = i
			break
		}
	}
	return m
}

// Init initializes the model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "enter", " ":
			if m.cursor < len(m.options) {
				m.selected = &m.options[m.cursor]
				return m, tea.Quit
			}

		case "up", "k", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j", "ctrl+n":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			m.cursor = max(len(m.options)-1, 0)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View renders the model.
func (m PickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	if len(m.options) == 0 {
		b.WriteString(dimStyle.Render("Nothing to choose from"))
		b.WriteString("\n")
	}
	for i, o := range m.options {
		var line strings.Builder
		if o.Active {
			line.WriteString(activeStyle.Render("● "))
		} else {
			line.WriteString(dimStyle.Render("○ "))
		}
		label := o.Label
		if label == "" {
			label = o.Value
		}
		line.WriteString(label)
		if o.Detail != "" {
			line.WriteString(" " + dimStyle.Render(o.Detail))
		}

		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + line.String()))
		} else {
			b.WriteString(itemStyle.Render("  " + line.String()))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ navigate • enter select • esc quit"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("● current"))

	return b.String()
}

// Selected returns the selected option, or nil if none.
func (m PickerModel) Selected() *Option {
	return m.selected
}

// RunPicker runs the picker and returns the selected option.
func RunPicker(title string, options []Option) (*Option, error) {
	p := tea.NewProgram(NewPickerModel(title, options), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(PickerModel).Selected(), nil
}
