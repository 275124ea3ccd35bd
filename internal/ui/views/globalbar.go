package views

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/ui/components"
)

// GlobalBar is the one-line status bar at the bottom of every screen. It
// stays visible while a track is current, including after the mini player
// was closed, so hidden playback is never lost.
type GlobalBar struct {
	Width int
	Style lipgloss.Style
}

func NewGlobalBar(width int) GlobalBar {
	return GlobalBar{
		Width: width,
		Style: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("236")),
	}
}

// Percent is the rounded progress in [0,100]; 0 while the duration is
// unknown.
func Percent(s api.SessionState) int {
	return int(math.Round(s.Progress() * 100))
}

func (b GlobalBar) View(snap coordinator.Snapshot) string {
	s := snap.Session
	if s.CurrentTrack == nil {
		return ""
	}
	right := fmt.Sprintf(" %s/%s %3d%% ",
		components.FormatMillis(s.Status.PositionMillis),
		components.FormatMillis(s.DurationMillis()),
		Percent(s))
	if s.PlaybackRate != 1 {
		right += fmt.Sprintf("%.2gx ", s.PlaybackRate)
	}
	if !snap.PlayerVisible {
		right += "[x] show "
	}

	room := max(b.Width-len([]rune(right))-3, 4)
	left := fmt.Sprintf(" %s %s", StatusIcon(s), components.Truncate(trackLabel(*s.CurrentTrack), room))

	pad := max(b.Width-len([]rune(left))-len([]rune(right)), 1)
	return b.Style.Render(left + fmt.Sprintf("%*s", pad, "") + right)
}

func trackLabel(t api.Track) string {
	if t.Author == "" {
		return t.Title
	}
	return t.Title + " · " + t.Author
}
