package main

import (
	"fmt"
	"strings"

	"calsync/engine"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type resolutionChoice struct {
	conflictID string
	strategy   engine.Strategy
}

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pickerSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	pickerDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pickerChoiceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// pickerModel is the bubbletea model for interactive conflict resolution.
// Arrow keys move, l/r/m assign a strategy to the highlighted conflict,
// enter applies all assignments, esc cancels.
type pickerModel struct {
	conflicts []engine.Conflict
	chosen    map[string]engine.Strategy

	cursor    int
	filter    textinput.Model
	filtering bool
	cancelled bool
	quitting  bool
}

func newPickerModel(conflicts []engine.Conflict) pickerModel {
	ti := textinput.New()
	ti.Placeholder = "filter by title..."
	ti.Width = 40

	return pickerModel{
		conflicts: conflicts,
		chosen:    make(map[string]engine.Strategy),
		filter:    ti,
	}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

// visible returns the indices of conflicts matching the filter text.
func (m pickerModel) visible() []int {
	query := strings.ToLower(m.filter.Value())
	var indices []int
	for i, c := range m.conflicts {
		if query == "" || strings.Contains(strings.ToLower(conflictTitle(&c)), query) {
			indices = append(indices, i)
		}
	}
	return indices
}

func conflictTitle(c *engine.Conflict) string {
	if c.Local != nil && c.Local.Title != "" {
		return c.Local.Title
	}
	if c.Remote != nil && c.Remote.Title != "" {
		return c.Remote.Title
	}
	return c.RecordID
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filtering {
		switch keyMsg.String() {
		case "enter", "esc":
			m.filtering = false
			m.filter.Blur()
			m.cursor = 0
			return m, nil
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}
	}

	visible := m.visible()

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		m.quitting = true
		return m, tea.Quit

	case "enter":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}

	case "l", "r", "m", "u":
		if len(visible) == 0 || m.cursor >= len(visible) {
			return m, nil
		}
		c := &m.conflicts[visible[m.cursor]]
		switch keyMsg.String() {
		case "l":
			m.chosen[c.ID] = engine.LocalWins
		case "r":
			m.chosen[c.ID] = engine.RemoteWins
		case "m":
			if c.Type == engine.ConflictContent {
				m.chosen[c.ID] = engine.Merge
			}
		case "u":
			delete(m.chosen, c.ID)
		}
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
	}

	return m, nil
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render("Resolve Conflicts"))
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("Filter: " + m.filter.View() + "\n\n")
	}

	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(pickerDimStyle.Render("  no conflicts match the filter") + "\n")
	}

	for pos, idx := range visible {
		c := &m.conflicts[idx]

		cursor := "  "
		if pos == m.cursor {
			cursor = pickerSelectedStyle.Render("> ")
		}

		choice := pickerDimStyle.Render("unresolved")
		if strategy, ok := m.chosen[c.ID]; ok {
			choice = pickerChoiceStyle.Render(string(strategy))
		}

		line := fmt.Sprintf("%s%-40s %s %s", cursor, truncate(conflictTitle(c), 40), pickerDimStyle.Render(string(c.Type)), choice)
		if pos == m.cursor {
			line = pickerSelectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	help := "l local wins · r remote wins · m merge · u undo · / filter · enter apply · esc cancel"
	b.WriteString("\n" + pickerDimStyle.Render(help) + "\n")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// pickResolutions runs the interactive picker and returns the chosen
// per-conflict strategies. A cancelled picker returns no choices.
func pickResolutions(conflicts []engine.Conflict) ([]resolutionChoice, error) {
	model := newPickerModel(conflicts)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("interactive resolution failed: %w", err)
	}

	result, ok := final.(pickerModel)
	if !ok || result.cancelled {
		return nil, nil
	}

	var choices []resolutionChoice
	for _, c := range conflicts {
		if strategy, ok := result.chosen[c.ID]; ok {
			choices = append(choices, resolutionChoice{conflictID: c.ID, strategy: strategy})
		}
	}
	return choices, nil
}
