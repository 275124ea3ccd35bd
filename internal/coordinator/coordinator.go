// Package coordinator holds the process-wide audio session shared by every
// player surface, plus the track identity and visibility rules on top of it.
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/audio"
	"github.com/jscyril/feedaudio/internal/engine"
	"github.com/jscyril/feedaudio/pkg/events"
)

// Snapshot is everything a surface renders.
type Snapshot struct {
	Session api.SessionState
	api.Visibility
}

// Reader is the read-only view handed to surfaces.
type Reader interface {
	Snapshot() Snapshot
	Subscribe() <-chan api.AudioEvent
	Unsubscribe(ch <-chan api.AudioEvent)
}

// Controller is the command side handed to surfaces. Commands never return
// errors; failures show up in Snapshot().Session.ErrorMessage.
type Controller interface {
	PlayTrack(ctx context.Context, track api.Track)
	Play(ctx context.Context)
	Pause(ctx context.Context)
	Toggle(ctx context.Context)
	Stop(ctx context.Context)
	Seek(ctx context.Context, positionMillis int64)
	SetRate(ctx context.Context, rate float64)
	Retry(ctx context.Context)

	ShowPlayer()
	HidePlayer()
	TogglePlayer()
	ShowFullScreen()
	HideFullScreen()
	ToggleFullScreen()
}

// ReadController is both halves; only the application root holds one.
type ReadController interface {
	Reader
	Controller
}

var _ ReadController = (*Coordinator)(nil)

// Coordinator wraps exactly one session for the lifetime of the process.
type Coordinator struct {
	session *audio.Session
	bus     *events.EventBus
	log     *zap.Logger
	opts    audio.LoadOptions

	mu  sync.RWMutex
	vis api.Visibility
}

// Options configures a Coordinator.
type Options struct {
	Logger        *zap.Logger
	EngineOptions *engine.Options
	Rate          float64
	UsePreview    bool
}

// New creates a coordinator with an empty session over binding.
func New(binding engine.Binding, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		bus:  events.NewEventBus(),
		log:  log,
		opts: audio.LoadOptions{UsePreview: opts.UsePreview},
	}
	sessOpts := []audio.Option{
		audio.WithLogger(log.Named("session")),
		audio.WithNotifier(c.bus.Publish),
		audio.WithRate(opts.Rate),
	}
	if opts.EngineOptions != nil {
		sessOpts = append(sessOpts, audio.WithEngineOptions(*opts.EngineOptions))
	}
	c.session = audio.NewSession(binding, sessOpts...)
	return c
}

// PlayTrack plays track. The same track with a live handle resumes without
// reloading; any other track is loaded and started once the load succeeds.
// The player is shown either way.
func (c *Coordinator) PlayTrack(ctx context.Context, track api.Track) {
	c.ShowPlayer()

	reused, err := c.session.Ensure(ctx, track, c.opts)
	if err != nil {
		if !audio.IsSuperseded(err) {
			c.log.Warn("play track failed", zap.String("track", track.ID), zap.Error(err))
		}
		return
	}
	if reused {
		c.log.Debug("resuming track", zap.String("track", track.ID))
	}
	c.swallow("play", c.session.Play(ctx))
}

func (c *Coordinator) Play(ctx context.Context)  { c.swallow("play", c.session.Play(ctx)) }
func (c *Coordinator) Pause(ctx context.Context) { c.swallow("pause", c.session.Pause(ctx)) }
func (c *Coordinator) Stop(ctx context.Context)  { c.swallow("stop", c.session.Stop(ctx)) }

// Toggle pauses when the engine reports playing and plays otherwise.
func (c *Coordinator) Toggle(ctx context.Context) {
	if c.session.State().IsPlaying() {
		c.Pause(ctx)
		return
	}
	c.Play(ctx)
}

func (c *Coordinator) Seek(ctx context.Context, positionMillis int64) {
	c.swallow("seek", c.session.Seek(ctx, positionMillis))
}

func (c *Coordinator) SetRate(ctx context.Context, rate float64) {
	c.swallow("set_rate", c.session.SetRate(ctx, rate))
}

// Retry reloads the last requested track and starts it.
func (c *Coordinator) Retry(ctx context.Context) {
	if err := c.session.Retry(ctx); err != nil {
		c.swallow("retry", err)
		return
	}
	if c.session.State().HasHandle() {
		c.swallow("play", c.session.Play(ctx))
	}
}

func (c *Coordinator) swallow(op string, err error) {
	if err != nil && !audio.IsSuperseded(err) {
		c.log.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
}

// Visibility is independent of transport: hiding the player never pauses.

func (c *Coordinator) ShowPlayer()   { c.setVisibility(func(v *api.Visibility) { v.PlayerVisible = true }) }
func (c *Coordinator) HidePlayer()   { c.setVisibility(func(v *api.Visibility) { v.PlayerVisible = false }) }
func (c *Coordinator) TogglePlayer() { c.setVisibility(func(v *api.Visibility) { v.PlayerVisible = !v.PlayerVisible }) }

func (c *Coordinator) ShowFullScreen() {
	c.setVisibility(func(v *api.Visibility) { v.FullScreenVisible = true })
}

func (c *Coordinator) HideFullScreen() {
	c.setVisibility(func(v *api.Visibility) { v.FullScreenVisible = false })
}

func (c *Coordinator) ToggleFullScreen() {
	c.setVisibility(func(v *api.Visibility) { v.FullScreenVisible = !v.FullScreenVisible })
}

func (c *Coordinator) setVisibility(fn func(v *api.Visibility)) {
	c.mu.Lock()
	before := c.vis
	fn(&c.vis)
	after := c.vis
	c.mu.Unlock()

	if before != after {
		c.bus.Publish(api.AudioEvent{Type: api.EventVisibilityChange, Payload: after})
	}
}

// Snapshot returns the session state and visibility flags.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	vis := c.vis
	c.mu.RUnlock()
	return Snapshot{Session: c.session.State(), Visibility: vis}
}

// Subscribe returns a channel receiving every session and visibility event.
func (c *Coordinator) Subscribe() <-chan api.AudioEvent {
	return c.bus.SubscribeAll()
}

// Unsubscribe stops and closes a channel returned by Subscribe.
func (c *Coordinator) Unsubscribe(ch <-chan api.AudioEvent) {
	c.bus.Unsubscribe(ch)
}

// Close stops playback and releases the engine handle at process teardown.
func (c *Coordinator) Close(ctx context.Context) error {
	c.swallow("stop", c.session.Stop(ctx))
	err := c.session.Close(ctx)
	c.bus.Close()
	c.log.Info("audio coordinator closed")
	return err
}
