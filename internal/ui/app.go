package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/config"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/feed"
	"github.com/jscyril/feedaudio/internal/ui/views"
	"github.com/jscyril/feedaudio/internal/waveform"
)

// Playback rate bounds and step for the speed keys.
const (
	minRate  = 0.5
	maxRate  = 2.0
	rateStep = 0.25
	seekStep = 5000
)

// Deps is what the application model needs from the process.
type Deps struct {
	Coordinator coordinator.ReadController
	Feed        *feed.Feed
	Keys        config.KeyMap
	Resolver    *waveform.Resolver
	Peek        *views.PeekPlayer
	Logger      *zap.Logger
	Refresh     time.Duration
}

// Model is the main bubbletea model
type Model struct {
	// Dimensions
	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc
	coord  coordinator.ReadController
	events <-chan api.AudioEvent
	keys   config.KeyMap
	log    *zap.Logger

	resolver *waveform.Resolver
	peek     *views.PeekPlayer
	pending  map[string]bool
	refresh  time.Duration

	snap coordinator.Snapshot

	// Surfaces
	feedView views.FeedView
	mini     views.MiniPlayer
	full     views.FullScreenPlayer
	bar      views.GlobalBar

	headerStyle lipgloss.Style
}

// TickMsg is sent periodically to refresh progress
type TickMsg time.Time

// EventMsg carries one coordinator event.
type EventMsg struct {
	Event api.AudioEvent
}

// WaveformMsg delivers resolved samples for a track.
type WaveformMsg struct {
	TrackID string
	Samples []float64
	Err     error
}

// NewModel creates a new application model and subscribes to the
// coordinator. Close releases the subscription.
func NewModel(ctx context.Context, d Deps) Model {
	ctx, cancel := context.WithCancel(ctx)
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	refresh := d.Refresh
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	m := Model{
		width:    80,
		height:   24,
		ctx:      ctx,
		cancel:   cancel,
		coord:    d.Coordinator,
		events:   d.Coordinator.Subscribe(),
		keys:     d.Keys,
		log:      log,
		resolver: d.Resolver,
		peek:     d.Peek,
		pending:  make(map[string]bool),
		refresh:  refresh,
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
	}

	m.feedView = views.NewFeedView(d.Feed, m.width, m.height-8)
	m.mini = views.NewMiniPlayer(m.width)
	m.full = views.NewFullScreenPlayer(m.width, m.height-2)
	m.bar = views.NewGlobalBar(m.width)
	m.sync()
	return m
}

// Close unsubscribes from the coordinator and releases the preview player.
func (m Model) Close() {
	m.cancel()
	m.coord.Unsubscribe(m.events)
	if m.peek != nil {
		m.peek.Release(context.WithoutCancel(m.ctx))
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.listenForEvents(),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// listenForEvents waits for the next coordinator event
func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case event, ok := <-m.events:
			if !ok {
				return nil
			}
			return EventMsg{Event: event}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// do runs a transport command off the UI goroutine.
func (m Model) do(fn func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx)
		return views.CommandDoneMsg{}
	}
}

// sync re-reads the coordinator snapshot into every surface.
func (m *Model) sync() {
	m.snap = m.coord.Snapshot()
	m.feedView.SetState(m.snap.Session)
	m.full.SetState(m.snap.Session)
	if m.peek != nil {
		m.feedView.SetPeek(m.peek.PostID())
	}
}

// waveformCmd starts a lazy waveform fetch for the full-screen track. Each
// track is requested at most once while its fetch is pending.
func (m *Model) waveformCmd() tea.Cmd {
	track := m.snap.Session.CurrentTrack
	if !m.snap.FullScreenVisible || track == nil || m.resolver == nil {
		return nil
	}
	if m.full.WaveformTrack() == track.ID || m.pending[track.ID] {
		return nil
	}

	samples, resolved, err := m.resolver.Cached(*track)
	if resolved {
		m.full.SetWaveform(track.ID, samples, false)
		if err != nil {
			m.log.Debug("waveform unavailable", zap.String("track", track.ID), zap.Error(err))
		}
		return nil
	}

	m.pending[track.ID] = true
	m.full.SetWaveform(track.ID, nil, true)
	ctx, resolver, t := m.ctx, m.resolver, *track
	return func() tea.Msg {
		samples, err := resolver.Resolve(ctx, t)
		return WaveformMsg{TrackID: t.ID, Samples: samples, Err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewSizes()

	case TickMsg:
		m.sync()
		cmds = append(cmds, m.tickCmd())

	case EventMsg:
		m.sync()
		cmds = append(cmds, m.listenForEvents())

	case views.CommandDoneMsg:
		m.sync()
		// a preview started off the UI goroutine may belong to a post the
		// selection has already left
		cmds = append(cmds, m.releasePeekIfMoved())

	case WaveformMsg:
		delete(m.pending, msg.TrackID)
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.log.Debug("waveform fetch failed", zap.String("track", msg.TrackID), zap.Error(msg.Err))
		}
		m.full.SetWaveform(msg.TrackID, msg.Samples, false)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		if !m.snap.FullScreenVisible && m.feedView.Filtering {
			m.feedView, _ = m.feedView.Update(msg)
			return m, nil
		}
		if m.snap.FullScreenVisible {
			if cmd, handled := m.full.HandleKey(m.ctx, m.coord, m.keys, msg); handled {
				m.sync()
				return m, cmd
			}
		}
		cmds = append(cmds, m.handleKey(msg)...)
		m.sync()
	}

	cmds = append(cmds, m.waveformCmd())
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) []tea.Cmd {
	k := m.keys
	s := m.snap.Session

	switch msg.String() {
	case k.Quit:
		m.cancel()
		return []tea.Cmd{tea.Quit}

	case k.Play:
		if m.snap.FullScreenVisible {
			return nil
		}
		if p, ok := m.feedView.Selected(); ok {
			return []tea.Cmd{p.Activate(m.ctx, m.coord, s)}
		}

	case k.PlayPause:
		return []tea.Cmd{m.do(m.coord.Toggle)}

	case k.Stop:
		return []tea.Cmd{m.do(m.coord.Stop)}

	case k.SeekForward, k.SeekBack:
		step := int64(seekStep)
		if msg.String() == k.SeekBack {
			step = -step
		}
		pos := max(s.Status.PositionMillis+step, 0)
		return []tea.Cmd{m.do(func(ctx context.Context) { m.coord.Seek(ctx, pos) })}

	case k.RateUp, k.RateDown:
		delta := rateStep
		if msg.String() == k.RateDown {
			delta = -delta
		}
		rate := lo.Clamp(s.PlaybackRate+delta, minRate, maxRate)
		return []tea.Cmd{m.do(func(ctx context.Context) { m.coord.SetRate(ctx, rate) })}

	case k.Minimize:
		m.mini.ToggleMinimize()

	case k.ClosePlayer:
		if m.snap.PlayerVisible {
			m.mini.Close(m.coord)
		} else {
			m.coord.ShowPlayer()
		}

	case k.FullScreen:
		m.coord.ToggleFullScreen()

	case k.Retry:
		return []tea.Cmd{m.do(m.coord.Retry)}

	case k.InlinePlayPause:
		if m.peek == nil || m.snap.FullScreenVisible {
			return nil
		}
		if p, ok := m.feedView.Selected(); ok {
			peek, post := m.peek, p.Post
			return []tea.Cmd{m.do(func(ctx context.Context) { peek.Toggle(ctx, post) })}
		}

	default:
		if m.snap.FullScreenVisible {
			return nil
		}
		m.feedView, _ = m.feedView.Update(msg)
		return []tea.Cmd{m.releasePeekIfMoved()}
	}
	return nil
}

// releasePeekIfMoved unmounts the preview once its post is no longer
// selected.
func (m *Model) releasePeekIfMoved() tea.Cmd {
	if m.peek == nil {
		return nil
	}
	id := m.peek.PostID()
	if id == "" {
		return nil
	}
	if p, ok := m.feedView.Selected(); ok && p.Post.ID == id {
		return nil
	}
	return m.do(m.peek.Release)
}

// updateViewSizes updates view dimensions
func (m *Model) updateViewSizes() {
	m.feedView.SetSize(m.width, m.height-8)
	m.mini.SetWidth(m.width)
	m.full.SetSize(m.width, m.height-2)
	m.bar.Width = m.width
}

// View renders the UI
func (m Model) View() string {
	var parts []string

	if m.snap.FullScreenVisible {
		parts = append(parts, m.full.View())
	} else {
		parts = append(parts, m.headerStyle.Render("feedaudio"))
		if mini := m.mini.View(m.snap); mini != "" {
			parts = append(parts, mini)
		}
		parts = append(parts, m.feedView.View())
	}
	if bar := m.bar.View(m.snap); bar != "" {
		parts = append(parts, bar)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Run starts the bubbletea program and blocks until it exits.
func Run(ctx context.Context, d Deps) error {
	model := NewModel(ctx, d)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
