package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/audio"
	"github.com/jscyril/feedaudio/internal/config"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/engine/enginetest"
	"github.com/jscyril/feedaudio/internal/feed"
	"github.com/jscyril/feedaudio/internal/ui/views"
	"github.com/jscyril/feedaudio/internal/waveform"
)

type harness struct {
	m     Model
	fake  *enginetest.Binding
	coord *coordinator.Coordinator
}

func newHarness(t *testing.T, posts []*feed.Post, fetcher *waveform.Fetcher) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	fake := enginetest.New()
	coord := coordinator.New(fake, coordinator.Options{Logger: log})

	f := feed.NewFeed()
	for _, p := range posts {
		f.AddPost(p)
	}
	m := NewModel(context.Background(), Deps{
		Coordinator: coord,
		Feed:        f,
		Keys:        config.GetDefaultConfig().KeyBindings,
		Resolver:    waveform.NewResolver(fetcher, 16),
		Peek:        views.NewPeekPlayer(fake, audio.HookOptions{Logger: log}),
		Logger:      log,
	})
	t.Cleanup(func() {
		m.Close()
		coord.Close(context.Background())
	})
	return &harness{m: m, fake: fake, coord: coord}
}

// press handles one key and runs the transport commands it produced.
func (h *harness) press(t *testing.T, msg tea.KeyMsg) {
	t.Helper()
	for _, cmd := range h.m.handleKey(msg) {
		if cmd == nil {
			continue
		}
		if _, ok := cmd().(views.CommandDoneMsg); !ok {
			t.Fatalf("key %q: unexpected command result", msg.String())
		}
	}
	h.m.sync()
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	older = &feed.Post{ID: "p1", Author: "ana", Caption: "morning set", CreatedAt: time.Unix(100, 0),
		Media: &feed.Media{TrackID: "t1", AudioURL: "https://x/a.mp3", Title: "Sunrise",
			Waveform: []float64{0.1, 0.9, 0.4}}}
	newer = &feed.Post{ID: "p2", Author: "ben", Caption: "evening", CreatedAt: time.Unix(200, 0),
		Media: &feed.Media{TrackID: "t2", AudioURL: "https://x/b.mp3"}}
)

func TestEnterPlaysSelectedPost(t *testing.T) {
	h := newHarness(t, []*feed.Post{older, newer}, nil)

	h.press(t, key("enter"))
	if got := h.m.snap.Session.CurrentID(); got != "t2" {
		t.Fatalf("current = %q, want the newest post's track", got)
	}
	if !h.m.snap.PlayerVisible {
		t.Error("playing shows the mini player")
	}

	h.press(t, key("enter"))
	if n := h.fake.Count("create"); n != 1 {
		t.Errorf("create calls = %d, want 1", n)
	}

	h.press(t, key("down"))
	h.press(t, key("enter"))
	if got := h.m.snap.Session.CurrentID(); got != "t1" {
		t.Errorf("current = %q, want t1", got)
	}
	if h.fake.MaxLive() != 1 {
		t.Errorf("max live handles = %d", h.fake.MaxLive())
	}
}

func TestCloseKeyKeepsPlaying(t *testing.T) {
	h := newHarness(t, []*feed.Post{newer}, nil)
	h.press(t, key("enter"))
	h.fake.Last().Emit(api.PlaybackStatus{IsLoaded: true, IsPlaying: true, DurationMillis: 60000})
	h.m.sync()

	h.press(t, key("x"))
	if h.m.snap.PlayerVisible {
		t.Error("x should hide the player")
	}
	if !h.m.snap.Session.IsPlaying() {
		t.Error("hiding must not pause")
	}
	if view := h.m.View(); !strings.Contains(view, "[x] show") {
		t.Errorf("global bar should remain:\n%s", view)
	}

	h.press(t, key("x"))
	if !h.m.snap.PlayerVisible {
		t.Error("x again should show the player")
	}
}

func TestRateKeysClamp(t *testing.T) {
	h := newHarness(t, []*feed.Post{newer}, nil)
	h.press(t, key("enter"))

	for i := 0; i < 8; i++ {
		h.press(t, key("+"))
	}
	if got := h.m.snap.Session.PlaybackRate; got != maxRate {
		t.Errorf("rate = %v, want %v", got, maxRate)
	}
	for i := 0; i < 8; i++ {
		h.press(t, key("-"))
	}
	if got := h.m.snap.Session.PlaybackRate; got != minRate {
		t.Errorf("rate = %v, want %v", got, minRate)
	}
}

func TestFullScreenUsesInlineWaveform(t *testing.T) {
	h := newHarness(t, []*feed.Post{older}, nil)
	h.press(t, key("enter"))
	h.press(t, key("f"))
	if !h.m.snap.FullScreenVisible {
		t.Fatal("f should open the full-screen player")
	}

	if cmd := h.m.waveformCmd(); cmd != nil {
		t.Error("inline samples need no fetch")
	}
	if h.m.full.WaveformTrack() != "t1" || len(h.m.full.Waveform.Samples) == 0 {
		t.Errorf("waveform = %q %v", h.m.full.WaveformTrack(), h.m.full.Waveform.Samples)
	}
}

func TestFullScreenFetchesWaveformOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"waveform":[1,2,3,4],"duration":3}`))
	}))
	defer srv.Close()

	post := &feed.Post{ID: "p3", Author: "cy", Caption: "remote",
		Media: &feed.Media{TrackID: "t3", AudioURL: "https://x/c.mp3", WaveformURL: srv.URL + "/c.json"}}
	h := newHarness(t, []*feed.Post{post}, waveform.NewFetcher(waveform.WithHTTPClient(srv.Client())))

	h.press(t, key("enter"))
	h.press(t, key("f"))

	cmd := h.m.waveformCmd()
	if cmd == nil {
		t.Fatal("expected a fetch")
	}
	if again := h.m.waveformCmd(); again != nil {
		t.Error("a pending fetch must not be requested twice")
	}
	if !h.m.full.Waveform.Loading {
		t.Error("placeholder should show loading")
	}

	next, _ := h.m.Update(cmd())
	h.m = next.(Model)
	if len(h.m.full.Waveform.Samples) != 4 || h.m.full.Waveform.Loading {
		t.Errorf("samples = %v", h.m.full.Waveform.Samples)
	}
	if h.m.waveformCmd() != nil || hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestInlinePreviewKey(t *testing.T) {
	h := newHarness(t, []*feed.Post{older, newer}, nil)

	h.press(t, key("i"))
	if h.m.peek.PostID() != "p2" {
		t.Fatalf("preview post = %q", h.m.peek.PostID())
	}
	if h.m.snap.Session.CurrentTrack != nil {
		t.Error("preview must not touch the global session")
	}

	h.press(t, key("down"))
	if h.m.peek.PostID() != "" || h.fake.Live() != 0 {
		t.Errorf("moving away should release the preview, live = %d", h.fake.Live())
	}
}

// settle feeds cmd's result back through Update until no command is left.
func (h *harness) settle(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case nil:
		default:
			model, more := h.m.Update(msg)
			h.m = model.(Model)
			queue = append(queue, more)
		}
	}
}

func TestPreviewReleasedWhenSelectionMovedDuringStart(t *testing.T) {
	h := newHarness(t, []*feed.Post{older, newer}, nil)

	start := h.m.handleKey(key("i"))
	if len(start) != 1 || start[0] == nil {
		t.Fatal("i should start a preview")
	}
	h.press(t, key("down"))
	if h.m.peek.PostID() != "" {
		t.Fatal("preview has not started yet")
	}

	h.settle(t, start[0])
	if id := h.m.peek.PostID(); id != "" {
		t.Errorf("preview still bound to %q after the selection moved", id)
	}
	if h.fake.Live() != 0 {
		t.Errorf("Live = %d, want 0", h.fake.Live())
	}
}

func TestQuit(t *testing.T) {
	h := newHarness(t, nil, nil)
	cmds := h.m.handleKey(key("q"))
	if len(cmds) != 1 || cmds[0] == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmds[0]().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if h.m.ctx.Err() == nil {
		t.Error("quit should cancel the model context")
	}
}
