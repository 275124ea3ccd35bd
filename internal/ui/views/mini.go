package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/ui/components"
)

// MiniPlayer is the compact player docked above the feed. Minimize only
// changes how it is drawn; Close hides it through the coordinator. Neither
// touches transport.
type MiniPlayer struct {
	Width     int
	Minimized bool
	Bar       components.ProgressBar

	TitleStyle  lipgloss.Style
	AuthorStyle lipgloss.Style
	StatusStyle lipgloss.Style
	ErrorStyle  lipgloss.Style
	HintStyle   lipgloss.Style
	BorderStyle lipgloss.Style
}

// NewMiniPlayer creates an expanded mini player.
func NewMiniPlayer(width int) MiniPlayer {
	return MiniPlayer{
		Width:       width,
		Bar:         components.NewProgressBar(width - 8),
		TitleStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		AuthorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		StatusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		ErrorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		HintStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
	}
}

// SetWidth resizes the player and its bar.
func (v *MiniPlayer) SetWidth(width int) {
	v.Width = width
	v.Bar.Width = width - 8
}

func (v *MiniPlayer) ToggleMinimize() {
	v.Minimized = !v.Minimized
}

// Close hides the player. Playback continues.
func (v *MiniPlayer) Close(ctrl coordinator.Controller) {
	v.Minimized = false
	ctrl.HidePlayer()
}

// Visible reports whether the player draws anything for snap.
func (v MiniPlayer) Visible(snap coordinator.Snapshot) bool {
	return snap.PlayerVisible && snap.Session.CurrentTrack != nil
}

// StatusIcon is the transport glyph shared by the docked surfaces.
func StatusIcon(s api.SessionState) string {
	switch s.Phase() {
	case api.PhaseLoading:
		return IconLoading
	case api.PhaseReadyPlaying:
		return "▶"
	case api.PhaseReadyPaused:
		return "⏸"
	default:
		if s.ErrorMessage != "" {
			return IconError
		}
		return "⏹"
	}
}

// retryHint is offered only after a failed load; a failed command is retried
// by pressing its key again.
func retryHint(s api.SessionState) string {
	if s.HasHandle() {
		return ""
	}
	return "  [r] retry"
}

// View renders the player, or "" when it is hidden or has no track.
func (v MiniPlayer) View(snap coordinator.Snapshot) string {
	if !v.Visible(snap) {
		return ""
	}
	s := snap.Session
	track := s.CurrentTrack

	head := v.StatusStyle.Render(StatusIcon(s)) + " " +
		v.TitleStyle.Render(components.Truncate(track.Title, max(v.Width/2, 8)))

	if v.Minimized {
		return head + v.HintStyle.Render(fmt.Sprintf("  %s  [m] expand", components.FormatMillis(s.Status.PositionMillis)))
	}

	var sb strings.Builder
	sb.WriteString(head)
	if track.Author != "" {
		sb.WriteString(" · ")
		sb.WriteString(v.AuthorStyle.Render(track.Author))
	}
	sb.WriteString("\n")

	bar := v.Bar
	bar.SetProgress(s.Status.PositionMillis, s.DurationMillis())
	sb.WriteString(bar.View())

	if s.PlaybackRate != 1 {
		sb.WriteString(fmt.Sprintf("  %.2gx", s.PlaybackRate))
	}
	if s.ErrorMessage != "" {
		sb.WriteString("\n")
		sb.WriteString(v.ErrorStyle.Render(components.Truncate(s.ErrorMessage, max(v.Width-8, 10)) + retryHint(s)))
	}
	sb.WriteString("\n")
	sb.WriteString(v.HintStyle.Render("[space] play/pause  [m] minimize  [f] full screen  [x] close"))

	return v.BorderStyle.Width(max(v.Width-4, 20)).Render(sb.String())
}
