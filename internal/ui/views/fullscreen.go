package views

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/config"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/ui/components"
)

// FullScreenPlayer displays the current track with its waveform and a
// draggable seek slider.
type FullScreenPlayer struct {
	Width    int
	Height   int
	Slider   components.SeekSlider
	Waveform components.Waveform

	state     api.SessionState
	waveTrack string

	// Styles
	TitleStyle    lipgloss.Style
	AuthorStyle   lipgloss.Style
	StatusStyle   lipgloss.Style
	ErrorStyle    lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewFullScreenPlayer creates a new full-screen player
func NewFullScreenPlayer(width, height int) FullScreenPlayer {
	return FullScreenPlayer{
		Width:    width,
		Height:   height,
		Slider:   components.NewSeekSlider(width - 8),
		Waveform: components.NewWaveform(width - 8),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1),
		AuthorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		ErrorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
	}
}

// SetSize resizes the player and its bars.
func (v *FullScreenPlayer) SetSize(width, height int) {
	v.Width = width
	v.Height = height
	v.Slider.Bar.Width = width - 8
	v.Waveform.Width = width - 8
}

// SetState updates the playback state. A track change drops the waveform
// and cancels any drag.
func (v *FullScreenPlayer) SetState(state api.SessionState) {
	if state.CurrentID() != v.state.CurrentID() {
		v.Slider.Cancel()
	}
	if state.CurrentID() != v.waveTrack {
		v.waveTrack = ""
		v.Waveform.Samples = nil
		v.Waveform.Loading = false
	}
	v.state = state
	v.Slider.SetPosition(state.Status.PositionMillis, state.DurationMillis())
}

// WaveformTrack is the track id the current samples belong to, or "".
func (v FullScreenPlayer) WaveformTrack() string {
	return v.waveTrack
}

// SetWaveform installs samples for trackID. Samples for a track that is no
// longer current are ignored.
func (v *FullScreenPlayer) SetWaveform(trackID string, samples []float64, loading bool) {
	if trackID != v.state.CurrentID() {
		return
	}
	v.waveTrack = trackID
	v.Waveform.Samples = samples
	v.Waveform.Loading = loading
}

// HandleKey handles the seek keys. Left and right move the drag target;
// the commit key releases it with exactly one Seek. handled is false for
// keys the player does not own.
func (v *FullScreenPlayer) HandleKey(ctx context.Context, ctrl coordinator.Controller, keys config.KeyMap, msg tea.KeyMsg) (cmd tea.Cmd, handled bool) {
	switch msg.String() {
	case keys.SeekForward:
		v.Slider.DragBy(1)
	case keys.SeekBack:
		v.Slider.DragBy(-1)
	case keys.SeekCommit:
		pos, ok := v.Slider.Release()
		if !ok {
			return nil, true
		}
		return command(func() { ctrl.Seek(ctx, pos) }), true
	case "esc":
		if v.Slider.Dragging() {
			v.Slider.Cancel()
			return nil, true
		}
		ctrl.HideFullScreen()
	default:
		return nil, false
	}
	return nil, true
}

// View renders the full-screen player
func (v FullScreenPlayer) View() string {
	var sb strings.Builder

	track := v.state.CurrentTrack
	if track == nil {
		sb.WriteString(v.TitleStyle.Render("♪ Nothing playing"))
		sb.WriteString("\n\n")
		sb.WriteString(v.ControlsStyle.Render("Press Enter on a post to play"))
		return v.BorderStyle.Width(max(v.Width-4, 20)).Render(sb.String())
	}

	sb.WriteString(v.StatusStyle.Render(StatusIcon(v.state) + " "))
	sb.WriteString(v.TitleStyle.Render(track.Title))
	sb.WriteString("\n")
	sb.WriteString(v.AuthorStyle.Render(track.Author))
	sb.WriteString("\n\n")

	wave := v.Waveform
	wave.Progress = api.Progress(v.Slider.DisplayedMillis(), v.state.DurationMillis())
	sb.WriteString(wave.View())
	sb.WriteString("\n")
	sb.WriteString(v.Slider.View())
	if v.Slider.Dragging() {
		sb.WriteString(v.StatusStyle.Render("  ⇥ seek"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Speed: %.2gx", v.state.PlaybackRate))
	if v.state.ErrorMessage != "" {
		sb.WriteString("\n")
		sb.WriteString(v.ErrorStyle.Render(v.state.ErrorMessage + retryHint(v.state)))
	}

	sb.WriteString("\n")
	sb.WriteString(v.ControlsStyle.Render(
		"[Space] Play/Pause  [←/→] Drag  [Tab] Seek  [+/-] Speed  [s] Stop  [Esc] Back",
	))

	return v.BorderStyle.Width(max(v.Width-4, 20)).Render(sb.String())
}
