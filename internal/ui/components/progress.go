package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
)

// ProgressBar renders position/duration. A zero duration draws an empty bar.
type ProgressBar struct {
	Width          int
	PositionMillis int64
	DurationMillis int64
	BarChar        string
	EmptyChar      string
	ShowTime       bool
	Style          lipgloss.Style
	FilledStyle    lipgloss.Style
	EmptyStyle     lipgloss.Style
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		BarChar:     "█",
		EmptyChar:   "░",
		ShowTime:    true,
		Style:       lipgloss.NewStyle(),
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetProgress sets the current position and duration in milliseconds.
func (p *ProgressBar) SetProgress(positionMillis, durationMillis int64) {
	p.PositionMillis = positionMillis
	p.DurationMillis = durationMillis
}

// Fraction returns the filled share of the bar in [0,1].
func (p ProgressBar) Fraction() float64 {
	return api.Progress(p.PositionMillis, p.DurationMillis)
}

func (p ProgressBar) barWidth() int {
	w := p.Width
	if p.ShowTime {
		w -= 12
	}
	return max(w, 10)
}

// View renders the progress bar
func (p ProgressBar) View() string {
	var sb strings.Builder

	barWidth := p.barWidth()
	filled := int(float64(barWidth) * p.Fraction())

	sb.WriteString(p.FilledStyle.Render(strings.Repeat(p.BarChar, filled)))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat(p.EmptyChar, barWidth-filled)))

	if p.ShowTime {
		sb.WriteString(" ")
		sb.WriteString(FormatMillis(p.PositionMillis))
		sb.WriteString("/")
		sb.WriteString(FormatMillis(p.DurationMillis))
	}

	return p.Style.Render(sb.String())
}

// FormatMillis formats milliseconds as MM:SS
func FormatMillis(ms int64) string {
	d := (time.Duration(max(ms, 0)) * time.Millisecond).Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d", m, s)
}
