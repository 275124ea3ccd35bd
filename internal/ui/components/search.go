package components

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FilterInput is a one-line text input that filters the feed. Editing is
// rune based so multi-byte input never splits a character.
type FilterInput struct {
	Placeholder string
	Focused     bool
	Width       int
	Prompt      string
	Style       lipgloss.Style
	FocusStyle  lipgloss.Style

	value  []rune
	cursor int
}

// NewFilterInput creates an unfocused filter input.
func NewFilterInput(width int) FilterInput {
	return FilterInput{
		Placeholder: "Filter posts...",
		Width:       width,
		Prompt:      "/ ",
		Style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		FocusStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1),
	}
}

func (s *FilterInput) Focus() { s.Focused = true }
func (s *FilterInput) Blur()  { s.Focused = false }

// Value returns the current text.
func (s FilterInput) Value() string {
	return string(s.value)
}

// SetValue replaces the text and moves the cursor to its end.
func (s *FilterInput) SetValue(value string) {
	s.value = []rune(value)
	s.cursor = len(s.value)
}

// Clear clears the input
func (s *FilterInput) Clear() {
	s.value = nil
	s.cursor = 0
}

// Update edits the text when focused.
func (s FilterInput) Update(msg tea.Msg) (FilterInput, tea.Cmd) {
	if !s.Focused {
		return s, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	switch key.Type {
	case tea.KeyBackspace:
		if s.cursor > 0 {
			s.value = append(s.value[:s.cursor-1:s.cursor-1], s.value[s.cursor:]...)
			s.cursor--
		}
	case tea.KeyDelete:
		if s.cursor < len(s.value) {
			s.value = append(s.value[:s.cursor:s.cursor], s.value[s.cursor+1:]...)
		}
	case tea.KeyLeft:
		s.cursor = max(s.cursor-1, 0)
	case tea.KeyRight:
		s.cursor = min(s.cursor+1, len(s.value))
	case tea.KeyHome:
		s.cursor = 0
	case tea.KeyEnd:
		s.cursor = len(s.value)
	case tea.KeyRunes, tea.KeySpace:
		runes := key.Runes
		if key.Type == tea.KeySpace {
			runes = []rune{' '}
		}
		next := make([]rune, 0, len(s.value)+len(runes))
		next = append(next, s.value[:s.cursor]...)
		next = append(next, runes...)
		next = append(next, s.value[s.cursor:]...)
		s.value = next
		s.cursor += len(runes)
	}
	return s, nil
}

// View renders the filter input
func (s FilterInput) View() string {
	var content string
	switch {
	case len(s.value) == 0 && !s.Focused:
		content = s.Prompt + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(s.Placeholder)
	case s.Focused:
		cursor := lipgloss.NewStyle().Background(lipgloss.Color("212")).Render(" ")
		content = s.Prompt + string(s.value[:s.cursor]) + cursor + string(s.value[s.cursor:])
	default:
		content = s.Prompt + Truncate(string(s.value), s.Width-4-len(s.Prompt))
	}

	if s.Focused {
		return s.FocusStyle.Width(s.Width).Render(content)
	}
	return s.Style.Width(s.Width).Render(content)
}
