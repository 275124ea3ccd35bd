package views

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/feed"
	"github.com/jscyril/feedaudio/internal/ui/components"
)

// FeedView displays the post feed with an inline player per post
type FeedView struct {
	Width     int
	Height    int
	List      components.PostList
	Filter    components.FilterInput
	Filtering bool

	feed   *feed.Feed
	state  api.SessionState
	peekID string

	BorderStyle lipgloss.Style
	HelpStyle   lipgloss.Style
	PeekStyle   lipgloss.Style
}

// NewFeedView creates a view over f
func NewFeedView(f *feed.Feed, width, height int) FeedView {
	list := components.NewPostList(height-8, width-6)
	list.Title = "♪ Feed"
	list.ShowNumbers = false

	v := FeedView{
		Width:  width,
		Height: height,
		List:   list,
		Filter: components.NewFilterInput(width - 6),
		feed:   f,
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		HelpStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		PeekStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	}
	v.Refresh()
	return v
}

// SetSize resizes the view
func (v *FeedView) SetSize(width, height int) {
	v.Width = width
	v.Height = height
	v.List.Width = width - 6
	v.List.Height = max(height-8, 3)
	v.Filter.Width = width - 6
}

// Refresh reloads the posts from the feed, applying the current filter.
func (v *FeedView) Refresh() {
	if v.feed == nil {
		v.List.SetItems(nil)
		return
	}
	if q := strings.TrimSpace(v.Filter.Value()); q != "" {
		v.List.SetItems(v.feed.Search(q))
		return
	}
	v.List.SetItems(v.feed.All())
}

// SetState records the session state the inline players render.
func (v *FeedView) SetState(s api.SessionState) {
	v.state = s
}

// SetPeek marks the post previewed by the local peek player, "" for none.
func (v *FeedView) SetPeek(postID string) {
	v.peekID = postID
}

// Selected returns the inline player of the selected post.
func (v FeedView) Selected() (InlinePlayer, bool) {
	p := v.List.SelectedItem()
	if p == nil {
		return InlinePlayer{}, false
	}
	return NewInlinePlayer(p), true
}

// Update handles navigation and filtering. Transport keys are handled by
// the caller.
func (v FeedView) Update(msg tea.Msg) (FeedView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.Filtering {
			switch msg.String() {
			case "enter":
				v.Filtering = false
				v.Filter.Blur()
			case "esc":
				v.Filtering = false
				v.Filter.Blur()
				v.Filter.Clear()
				v.Refresh()
			default:
				v.Filter, _ = v.Filter.Update(msg)
				v.Refresh()
			}
			return v, nil
		}

		switch msg.String() {
		case "/":
			v.Filtering = true
			v.Filter.Focus()
		default:
			v.List, _ = v.List.Update(msg)
		}
	}
	return v, nil
}

func (v FeedView) row(p *feed.Post, width int) string {
	line := NewInlinePlayer(p).View(v.state, width)
	if p.ID == v.peekID {
		line += v.PeekStyle.Render(" ◦")
	}
	return line
}

// View renders the feed view
func (v FeedView) View() string {
	var sb strings.Builder

	sb.WriteString(v.Filter.View())
	sb.WriteString("\n\n")

	list := v.List
	list.Row = v.row
	sb.WriteString(list.View())

	sb.WriteString("\n\n")
	if v.Filtering {
		sb.WriteString(v.HelpStyle.Render("[Enter] Keep filter  [Esc] Clear"))
	} else {
		sb.WriteString(v.HelpStyle.Render("[/] Filter  [Enter] Play  [i] Preview here  [↑↓] Navigate  [q] Quit"))
	}

	return v.BorderStyle.Width(max(v.Width-4, 20)).Render(sb.String())
}
