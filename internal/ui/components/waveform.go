package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune("▁▂▃▄▅▆▇█")

// Waveform draws amplitude samples in [0,1] as a row of block glyphs. The
// part before Progress uses PlayedStyle. Without samples it draws a flat
// placeholder line so the layout does not shift.
type Waveform struct {
	Width       int
	Samples     []float64
	Progress    float64
	Loading     bool
	PlayedStyle lipgloss.Style
	RestStyle   lipgloss.Style
}

// NewWaveform creates an empty waveform.
func NewWaveform(width int) Waveform {
	return Waveform{
		Width:       width,
		PlayedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		RestStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Glyphs returns the unstyled glyph row, one rune per column.
func (w Waveform) Glyphs() []rune {
	out := make([]rune, w.Width)
	if len(w.Samples) == 0 {
		fill := '─'
		if w.Loading {
			fill = '┄'
		}
		for i := range out {
			out[i] = fill
		}
		return out
	}
	for i := range out {
		v := w.Samples[i*len(w.Samples)/w.Width]
		if math.IsNaN(v) {
			v = 0
		}
		v = math.Max(0, math.Min(1, v))
		out[i] = levels[int(math.Round(v*float64(len(levels)-1)))]
	}
	return out
}

// View renders the waveform.
func (w Waveform) View() string {
	if w.Width <= 0 {
		return ""
	}
	glyphs := w.Glyphs()
	played := int(float64(w.Width) * math.Max(0, math.Min(1, w.Progress)))

	var sb strings.Builder
	sb.WriteString(w.PlayedStyle.Render(string(glyphs[:played])))
	sb.WriteString(w.RestStyle.Render(string(glyphs[played:])))
	return sb.String()
}
