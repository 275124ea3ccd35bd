package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/jscyril/feedaudio/internal/feed"
)

// RowFunc renders one post row. The list applies the selection style.
type RowFunc func(p *feed.Post, width int) string

// PostList is a scrollable list of feed posts. Height includes the title
// line and the position footer.
type PostList struct {
	Items       []*feed.Post
	Height      int
	Width       int
	Title       string
	ShowNumbers bool
	Row         RowFunc

	cursor int
	top    int

	SelectedStyle lipgloss.Style
	NormalStyle   lipgloss.Style
	TitleStyle    lipgloss.Style
	FooterStyle   lipgloss.Style
}

// NewPostList creates an empty list
func NewPostList(height, width int) PostList {
	return PostList{
		Height:      height,
		Width:       width,
		ShowNumbers: true,
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		NormalStyle: lipgloss.NewStyle().Padding(0, 1),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1),
		FooterStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// SetItems replaces the list items, keeping the cursor on the same post
// when it is still present.
func (l *PostList) SetItems(items []*feed.Post) {
	var keep string
	if p := l.SelectedItem(); p != nil {
		keep = p.ID
	}
	l.Items = items
	l.cursor, l.top = 0, 0
	if _, idx, ok := lo.FindIndexOf(items, func(p *feed.Post) bool { return p.ID == keep }); ok {
		l.moveTo(idx)
	}
}

// Update moves the cursor on navigation keys
func (l PostList) Update(msg tea.Msg) (PostList, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil
	}
	switch key.String() {
	case "up", "k":
		l.MoveUp()
	case "down", "j":
		l.MoveDown()
	case "pgup":
		l.PageUp()
	case "pgdown":
		l.PageDown()
	case "home", "g":
		l.moveTo(0)
	case "end", "G":
		l.moveTo(len(l.Items) - 1)
	}
	return l, nil
}

func (l *PostList) MoveUp()   { l.moveTo(l.cursor - 1) }
func (l *PostList) MoveDown() { l.moveTo(l.cursor + 1) }
func (l *PostList) PageUp()   { l.moveTo(l.cursor - l.rows()) }
func (l *PostList) PageDown() { l.moveTo(l.cursor + l.rows()) }

// moveTo clamps idx into the list and scrolls just enough to show it.
func (l *PostList) moveTo(idx int) {
	if len(l.Items) == 0 {
		l.cursor, l.top = 0, 0
		return
	}
	l.cursor = lo.Clamp(idx, 0, len(l.Items)-1)
	rows := l.rows()
	switch {
	case l.cursor < l.top:
		l.top = l.cursor
	case l.cursor >= l.top+rows:
		l.top = l.cursor - rows + 1
	}
}

// rows is the number of posts that fit below the title.
func (l PostList) rows() int {
	return max(l.Height-2, 1)
}

// Cursor returns the index of the selected post.
func (l PostList) Cursor() int { return l.cursor }

// SelectedItem returns the post under the cursor, or nil for an empty list.
func (l PostList) SelectedItem() *feed.Post {
	if l.cursor < len(l.Items) {
		return l.Items[l.cursor]
	}
	return nil
}

func (l PostList) View() string {
	var lines []string
	if l.Title != "" {
		lines = append(lines, l.TitleStyle.Render(l.Title))
	}
	if len(l.Items) == 0 {
		return strings.Join(append(lines, l.NormalStyle.Render("No posts yet")), "\n")
	}

	row := l.Row
	if row == nil {
		row = defaultRow
	}
	last := min(l.top+l.rows(), len(l.Items))
	for i, p := range l.Items[l.top:last] {
		idx := l.top + i
		text := row(p, l.Width-8)
		if l.ShowNumbers {
			text = fmt.Sprintf("%3d. %s", idx+1, text)
		}
		style := l.NormalStyle
		if idx == l.cursor {
			style = l.SelectedStyle
		}
		lines = append(lines, style.Render(text))
	}

	if len(l.Items) > l.rows() {
		lines = append(lines, l.FooterStyle.Render(fmt.Sprintf("%d of %d", l.cursor+1, len(l.Items))))
	}
	return strings.Join(lines, "\n")
}

func defaultRow(p *feed.Post, width int) string {
	return Truncate(fmt.Sprintf("%s: %s", p.Author, p.Caption), width)
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-3]) + "..."
}
