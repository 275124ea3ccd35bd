package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jscyril/feedaudio/internal/feed"
)

func TestProgressBarFraction(t *testing.T) {
	tests := []struct {
		name     string
		pos, dur int64
		want     float64
	}{
		{"unknown duration", 5000, 0, 0},
		{"half", 90000, 180000, 0.5},
		{"past end", 200000, 180000, 1},
		{"negative position", -10, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgressBar(40)
			p.SetProgress(tt.pos, tt.dur)
			if got := p.Fraction(); got != tt.want {
				t.Errorf("Fraction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressBarView(t *testing.T) {
	p := NewProgressBar(32)
	p.SetProgress(0, 0)
	view := p.View()
	if strings.Contains(view, p.BarChar) {
		t.Errorf("zero duration should draw an empty bar: %q", view)
	}
	if !strings.Contains(view, "00:00/00:00") {
		t.Errorf("view = %q", view)
	}

	p.SetProgress(90000, 180000)
	if got := strings.Count(p.View(), p.BarChar); got != 10 {
		t.Errorf("filled = %d, want 10", got)
	}
}

func TestFormatMillis(t *testing.T) {
	tests := map[int64]string{
		0:      "00:00",
		-5:     "00:00",
		1499:   "00:01",
		61000:  "01:01",
		180000: "03:00",
	}
	for in, want := range tests {
		if got := FormatMillis(in); got != want {
			t.Errorf("FormatMillis(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSeekSliderDragIssuesOneSeek(t *testing.T) {
	s := NewSeekSlider(40)
	s.SetPosition(10000, 180000)

	if _, ok := s.Release(); ok {
		t.Fatal("Release without a drag must not seek")
	}

	s.BeginDrag()
	s.DragBy(2)
	s.DragTo(60000)
	s.DragBy(-1)

	// engine progress during the drag does not move the display
	s.SetPosition(11000, 180000)
	if got := s.DisplayedMillis(); got != 55000 {
		t.Errorf("displayed = %d, want 55000", got)
	}

	pos, ok := s.Release()
	if !ok || pos != 55000 {
		t.Errorf("Release() = %d, %v", pos, ok)
	}
	if _, ok := s.Release(); ok {
		t.Error("second Release must not seek again")
	}
	if s.DisplayedMillis() != 55000 {
		t.Errorf("displayed after release = %d", s.DisplayedMillis())
	}
}

func TestSeekSliderClamps(t *testing.T) {
	s := NewSeekSlider(40)
	s.SetPosition(0, 20000)

	s.DragTo(999999)
	if got := s.DisplayedMillis(); got != 20000 {
		t.Errorf("displayed = %d, want 20000", got)
	}
	s.DragBy(-100)
	if got := s.DisplayedMillis(); got != 0 {
		t.Errorf("displayed = %d, want 0", got)
	}

	s.Cancel()
	if s.Dragging() {
		t.Error("Cancel should end the drag")
	}
}

func TestWaveformGlyphs(t *testing.T) {
	w := NewWaveform(4)
	if got := string(w.Glyphs()); got != "────" {
		t.Errorf("placeholder = %q", got)
	}
	w.Loading = true
	if got := string(w.Glyphs()); got != "┄┄┄┄" {
		t.Errorf("loading placeholder = %q", got)
	}

	w.Samples = []float64{0, 1}
	if got := string(w.Glyphs()); got != "▁▁██" {
		t.Errorf("glyphs = %q", got)
	}

	w.Samples = []float64{2, -1, 0.5, 0.5}
	if got := string(w.Glyphs()); got != "█▁▅▅" {
		t.Errorf("out of range samples = %q", got)
	}
}

func TestFilterInput(t *testing.T) {
	in := NewFilterInput(30)
	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if in.Value() != "" {
		t.Error("unfocused input must ignore keys")
	}

	in.Focus()
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("café")},
		{Type: tea.KeySpace},
		{Type: tea.KeyRunes, Runes: []rune("x")},
		{Type: tea.KeyBackspace},
		{Type: tea.KeyBackspace},
		{Type: tea.KeyLeft},
		{Type: tea.KeyBackspace},
	} {
		in, _ = in.Update(msg)
	}
	if got := in.Value(); got != "caé" {
		t.Errorf("Value() = %q, want %q", got, "caé")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"a longer caption", 8, "a lon..."},
		{"ééééé", 4, "é..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPostListKeepsSelection(t *testing.T) {
	posts := []*feed.Post{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	l := NewPostList(10, 40)
	l.SetItems(posts)
	l.MoveDown()
	l.MoveDown()

	l.SetItems([]*feed.Post{{ID: "c"}, {ID: "a"}})
	if got := l.SelectedItem(); got == nil || got.ID != "c" {
		t.Errorf("selected = %v, want c", got)
	}

	l.SetItems(nil)
	l.PageDown()
	if l.SelectedItem() != nil {
		t.Error("empty list has no selection")
	}
}
