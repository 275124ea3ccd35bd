package views

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/feed"
	"github.com/jscyril/feedaudio/internal/ui/components"
)

// Inline player glyphs.
const (
	IconPlay    = "▶"
	IconPlaying = "⏸"
	IconLoading = "…"
	IconError   = "⚠"
	IconNoAudio = "·"
)

// CommandDoneMsg is returned by commands that ran a transport operation.
type CommandDoneMsg struct{}

// command runs fn off the UI goroutine so a slow load never blocks input.
func command(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return CommandDoneMsg{}
	}
}

// InlinePlayer is the play control inside one post. It has no transport
// state of its own: "playing" is derived by comparing the post's track id
// with the coordinator's current track, so at most one post shows it.
type InlinePlayer struct {
	Post *feed.Post

	track api.Track
	err   error

	IconStyle  lipgloss.Style
	ErrorStyle lipgloss.Style
	MetaStyle  lipgloss.Style
}

// NewInlinePlayer builds the player for p. Posts without audio render a
// disabled control.
func NewInlinePlayer(p *feed.Post) InlinePlayer {
	track, err := feed.TrackFromPost(p)
	return InlinePlayer{
		Post:       p,
		track:      track,
		err:        err,
		IconStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		ErrorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		MetaStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Track returns the track built from the post's media.
func (v InlinePlayer) Track() (api.Track, bool) {
	return v.track, v.err == nil
}

// IsCurrent reports whether the post's track is the session's track.
func (v InlinePlayer) IsCurrent(s api.SessionState) bool {
	return v.err == nil && s.CurrentID() == v.track.ID
}

func (v InlinePlayer) IsPlaying(s api.SessionState) bool {
	return v.IsCurrent(s) && s.IsPlaying()
}

func (v InlinePlayer) IsLoading(s api.SessionState) bool {
	return v.IsCurrent(s) && s.IsLoading
}

// Failed reports whether the post's track is current and failed to load. A
// failed command on a live handle is not a failure of the post.
func (v InlinePlayer) Failed(s api.SessionState) bool {
	return v.IsCurrent(s) && !s.IsLoading && !s.HasHandle() && s.ErrorMessage != ""
}

// Activate is a press on the inline button: retry after a failure, pause
// while playing, play otherwise.
func (v InlinePlayer) Activate(ctx context.Context, ctrl coordinator.Controller, s api.SessionState) tea.Cmd {
	switch {
	case v.err != nil, v.IsLoading(s):
		return nil
	case v.Failed(s):
		return command(func() { ctrl.Retry(ctx) })
	case v.IsPlaying(s):
		return command(func() { ctrl.Pause(ctx) })
	default:
		track := v.track
		return command(func() { ctrl.PlayTrack(ctx, track) })
	}
}

// Icon returns the glyph for the post in state s.
func (v InlinePlayer) Icon(s api.SessionState) string {
	switch {
	case v.err != nil:
		return IconNoAudio
	case v.IsLoading(s):
		return IconLoading
	case v.Failed(s):
		return IconError
	case v.IsPlaying(s):
		return IconPlaying
	default:
		return IconPlay
	}
}

// View renders one row: icon, author and caption, plus the error and retry
// hint when the track failed.
func (v InlinePlayer) View(s api.SessionState, width int) string {
	icon := v.IconStyle.Render(v.Icon(s))
	if v.Post == nil {
		return icon
	}
	room := max(width-2, 0)
	line := components.Truncate(fmt.Sprintf("%s: %s", v.Post.Author, v.Post.Caption), room)
	room -= len([]rune(line))
	if v.err == nil && v.track.Title != v.Post.Caption && room > 6 {
		line += v.MetaStyle.Render(components.Truncate("  ♪ "+v.track.Title, room))
	}
	if v.Failed(s) {
		line += v.ErrorStyle.Render("  " + components.Truncate(s.ErrorMessage, 32) + " [r] retry")
	}
	return icon + " " + line
}
