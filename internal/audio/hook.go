package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/engine"
	"github.com/jscyril/feedaudio/pkg/events"
)

// TrackHook binds one audio URL to a component-scoped session. It is used by
// inline players that must not disturb the global session.
//
// Errors never leave the hook; they are recorded in State().ErrorMessage.
// Unmount closes the hook's session; a later Mount starts a fresh one.
type TrackHook struct {
	binding engine.Binding
	hopts   HookOptions
	log     *zap.Logger
	opts    LoadOptions

	mu      sync.Mutex
	session *Session
	bus     *events.EventBus
	url     string
	mounted bool
}

// HookOptions configures a TrackHook.
type HookOptions struct {
	Logger        *zap.Logger
	EngineOptions *engine.Options
	Rate          float64
	UsePreview    bool
}

// NewTrackHook creates an unmounted hook over its own session.
func NewTrackHook(binding engine.Binding, opts HookOptions) *TrackHook {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &TrackHook{
		binding: binding,
		hopts:   opts,
		log:     log,
		opts:    LoadOptions{UsePreview: opts.UsePreview},
	}
	h.session, h.bus = h.newSession()
	return h
}

func (h *TrackHook) newSession() (*Session, *events.EventBus) {
	bus := events.NewEventBus()
	sessOpts := []Option{
		WithLogger(h.log.Named("hook")),
		WithNotifier(bus.Publish),
		WithRate(h.hopts.Rate),
	}
	if h.hopts.EngineOptions != nil {
		sessOpts = append(sessOpts, WithEngineOptions(*h.hopts.EngineOptions))
	}
	return NewSession(h.binding, sessOpts...), bus
}

// current returns the session the hook drives right now.
func (h *TrackHook) current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func urlTrack(url string) api.Track {
	return api.Track{ID: url, SourceURL: url}
}

// Mount marks the hook mounted and loads url when it is non-empty. Mounting
// again after Unmount replaces the closed session with a new one.
func (h *TrackHook) Mount(ctx context.Context, url string) {
	h.mu.Lock()
	if h.mounted {
		h.mu.Unlock()
		h.SetURL(ctx, url)
		return
	}
	if h.session.isClosed() {
		h.session, h.bus = h.newSession()
	}
	h.mounted = true
	h.url = url
	sess := h.session
	h.mu.Unlock()

	if url == "" {
		return
	}
	h.load(ctx, sess, url)
}

// SetURL switches the hook to a new URL. The old handle is torn down before
// the new one is created. An unchanged URL is a no-op.
func (h *TrackHook) SetURL(ctx context.Context, url string) {
	h.mu.Lock()
	if !h.mounted || url == h.url {
		h.mu.Unlock()
		return
	}
	h.url = url
	sess := h.session
	h.mu.Unlock()

	if url == "" {
		_ = sess.Unload(ctx)
		return
	}
	h.load(ctx, sess, url)
}

func (h *TrackHook) load(ctx context.Context, sess *Session, url string) {
	if err := sess.Load(ctx, urlTrack(url), h.opts); err != nil && !IsSuperseded(err) {
		h.log.Debug("hook load failed", zap.String("url", url), zap.Error(err))
	}
}

// Unmount tears the hook down. The live handle is unloaded exactly once,
// including when a load is still in flight.
func (h *TrackHook) Unmount(ctx context.Context) {
	h.mu.Lock()
	if !h.mounted {
		h.mu.Unlock()
		return
	}
	h.mounted = false
	sess, bus := h.session, h.bus
	h.mu.Unlock()

	_ = sess.Close(ctx)
	bus.Close()
}

// Retry reloads the hook's URL after a failure.
func (h *TrackHook) Retry(ctx context.Context) {
	if err := h.current().Retry(ctx); err != nil && !IsSuperseded(err) {
		h.log.Debug("hook retry failed", zap.Error(err))
	}
}

func (h *TrackHook) Play(ctx context.Context)  { h.swallow("play", h.current().Play(ctx)) }
func (h *TrackHook) Pause(ctx context.Context) { h.swallow("pause", h.current().Pause(ctx)) }
func (h *TrackHook) Stop(ctx context.Context)  { h.swallow("stop", h.current().Stop(ctx)) }

func (h *TrackHook) Seek(ctx context.Context, positionMillis int64) {
	h.swallow("seek", h.current().Seek(ctx, positionMillis))
}

func (h *TrackHook) SetRate(ctx context.Context, rate float64) {
	h.swallow("set_rate", h.current().SetRate(ctx, rate))
}

func (h *TrackHook) swallow(op string, err error) {
	if err != nil {
		h.log.Debug("hook operation failed", zap.String("op", op), zap.Error(err))
	}
}

// State returns the hook's session snapshot.
func (h *TrackHook) State() api.SessionState {
	return h.current().State()
}

// EngineRef returns the opaque identity of the live engine handle, or "".
// Callers may compare it but never reach the handle through it.
func (h *TrackHook) EngineRef() string {
	return h.current().State().EngineRef
}

// URL returns the URL the hook is bound to.
func (h *TrackHook) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Subscribe returns a channel of the hook's state changes. It is closed on
// Unmount.
func (h *TrackHook) Subscribe() <-chan api.AudioEvent {
	h.mu.Lock()
	bus := h.bus
	h.mu.Unlock()
	return bus.SubscribeAll()
}
