// Package audio owns the playback session: the single live engine handle,
// its derived state and the load/switch/unload transitions.
package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/engine"
	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

// LoadOptions controls how a track's source is chosen.
type LoadOptions struct {
	UsePreview bool
}

// Notifier receives every state change of a session. It is called outside
// the session locks and must not block.
type Notifier func(api.AudioEvent)

// Session owns at most one engine handle and the state derived from it.
//
// Engine operations are serialised by opMu; a call made while another is in
// flight waits for it. State reads only take mu and never wait on the engine.
type Session struct {
	binding engine.Binding
	engOpts engine.Options
	log     *zap.Logger
	notify  Notifier

	opMu sync.Mutex

	mu      sync.RWMutex
	state   api.SessionState
	handle  engine.Handle
	gen     uint64
	pending *pendingLoad
	lastReq *loadRequest
	closed  bool
}

// pendingLoad is the in-flight load. Ensure calls for the same track join
// it, so superseding cancels every caller.
type pendingLoad struct {
	trackID string
	next    int
	cancels map[int]context.CancelFunc
}

func (p *pendingLoad) cancel() {
	for _, c := range p.cancels {
		c()
	}
}

type loadRequest struct {
	track api.Track
	opts  LoadOptions
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithNotifier sets the state change sink.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notify = n }
}

// WithEngineOptions sets the options every new handle is created with. The
// rate is taken from the session, not from these options.
func WithEngineOptions(o engine.Options) Option {
	return func(s *Session) { s.engOpts = o }
}

// WithRate sets the initial playback rate.
func WithRate(rate float64) Option {
	return func(s *Session) {
		if rate > 0 {
			s.state.PlaybackRate = rate
		}
	}
}

// NewSession creates an empty session over binding.
func NewSession(binding engine.Binding, opts ...Option) *Session {
	s := &Session{
		binding: binding,
		engOpts: engine.DefaultOptions(),
		log:     zap.NewNop(),
		state:   api.SessionState{PlaybackRate: 1.0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Session) State() api.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() api.SessionState {
	st := s.state
	if s.state.CurrentTrack != nil {
		st.CurrentTrack = s.state.CurrentTrack.Clone()
	}
	return st
}

func (s *Session) emit(t api.EventType, st api.SessionState) {
	if s.notify != nil {
		s.notify(api.AudioEvent{Type: t, Payload: st})
	}
}

// update applies fn to the state under the lock and emits the result.
func (s *Session) update(t api.EventType, fn func(st *api.SessionState)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(t, snap)
}

// supersede cancels the in-flight load unless it is for keepID.
func (s *Session) supersede(keepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && (keepID == "" || s.pending.trackID != keepID) {
		s.pending.cancel()
	}
}

// beginLoad registers a cancellable load for trackID. With join set, a load
// already pending for the same track is shared instead of replaced.
func (s *Session) beginLoad(ctx context.Context, trackID string, join bool) (context.Context, func()) {
	loadCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	if !join || p == nil || p.trackID != trackID {
		p = &pendingLoad{trackID: trackID, cancels: make(map[int]context.CancelFunc)}
		s.pending = p
	}
	id := p.next
	p.next++
	p.cancels[id] = cancel
	return loadCtx, func() { s.endLoad(p, id) }
}

// endLoad drops caller id from p; the entry goes once nobody waits on it.
func (s *Session) endLoad(p *pendingLoad, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := p.cancels[id]; ok {
		cancel()
		delete(p.cancels, id)
	}
	if s.pending == p && len(p.cancels) == 0 {
		s.pending = nil
	}
}

// Load unloads any live handle and opens track. It never starts playback.
// A Load or Unload issued while this one is in flight supersedes it.
func (s *Session) Load(ctx context.Context, track api.Track, opts LoadOptions) error {
	if track.Source(opts.UsePreview) == "" {
		return playerrors.NewLoadError(track.ID, playerrors.ErrNoSource)
	}
	s.supersede("")
	loadCtx, done := s.beginLoad(ctx, track.ID, false)
	defer done()

	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.loadLocked(loadCtx, track, opts)
}

// Ensure makes track the loaded track. When the same track id already has a
// live handle it is reused and reused is true; otherwise the track is loaded.
// The decision and the load happen under one operation lock, so two
// concurrent callers for the same track create one handle.
func (s *Session) Ensure(ctx context.Context, track api.Track, opts LoadOptions) (reused bool, err error) {
	if track.Source(opts.UsePreview) == "" {
		return false, playerrors.NewLoadError(track.ID, playerrors.ErrNoSource)
	}
	s.supersede(track.ID)
	loadCtx, done := s.beginLoad(ctx, track.ID, true)
	defer done()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := loadCtx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	same := s.handle != nil && s.state.CurrentTrack != nil && s.state.CurrentTrack.ID == track.ID
	s.mu.RUnlock()
	if same {
		return true, nil
	}
	return false, s.loadLocked(loadCtx, track, opts)
}

func (s *Session) loadLocked(ctx context.Context, track api.Track, opts LoadOptions) error {
	if s.isClosed() {
		return playerrors.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		// superseded before it started
		return err
	}

	uri := track.Source(opts.UsePreview)

	s.unloadHandleLocked(ctx)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.lastReq = &loadRequest{track: track, opts: opts}
	s.state.CurrentTrack = track.Clone()
	s.state.EngineRef = ""
	s.state.Status = api.PlaybackStatus{}
	s.state.IsLoading = true
	s.state.ErrorMessage = ""
	rate := s.state.PlaybackRate
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(api.EventStateChange, snap)

	engOpts := s.engOpts
	engOpts.ShouldPlay = false
	engOpts.Rate = rate

	s.log.Debug("loading track",
		zap.String("track", track.ID),
		zap.String("uri", uri),
		zap.Float64("rate", rate))

	h, err := s.binding.Create(ctx, uri, engOpts, func(st api.PlaybackStatus) {
		s.onStatus(gen, st)
	})
	if err != nil {
		lerr := playerrors.NewLoadError(track.ID, err)
		s.mu.Lock()
		if s.gen == gen {
			s.state.IsLoading = false
			if ctx.Err() == nil {
				s.state.ErrorMessage = playerrors.Message(lerr)
			}
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.log.Debug("superseded load failed", zap.String("track", track.ID), zap.Error(err))
			s.emit(api.EventStateChange, snap)
			return ctx.Err()
		}
		s.log.Warn("load failed", zap.String("track", track.ID), zap.Error(err))
		s.emit(api.EventError, snap)
		return lerr
	}

	if ctx.Err() != nil {
		// Superseded while the engine was opening the source: the handle is
		// ours to release before the next load runs.
		s.log.Debug("discarding superseded handle", zap.String("track", track.ID), zap.String("handle", h.ID()))
		s.mu.Lock()
		if s.gen == gen {
			s.gen++
			s.state.IsLoading = false
		}
		s.mu.Unlock()
		if uerr := h.Unload(context.WithoutCancel(ctx)); uerr != nil {
			s.log.Warn("unload superseded handle", zap.String("handle", h.ID()), zap.Error(uerr))
		}
		return ctx.Err()
	}

	s.mu.Lock()
	s.handle = h
	s.state.EngineRef = h.ID()
	s.state.IsLoading = false
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("track loaded", zap.String("track", track.ID), zap.String("handle", h.ID()))
	s.emit(api.EventTrackStarted, snap)
	return nil
}

// unloadHandleLocked releases the live handle and waits for the engine.
// Status from the released handle is dropped from this point on.
func (s *Session) unloadHandleLocked(ctx context.Context) {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	if h != nil {
		s.gen++
		s.state.EngineRef = ""
	}
	s.mu.Unlock()
	if h == nil {
		return
	}

	if err := h.Unload(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("unload failed", zap.String("handle", h.ID()), zap.Error(err))
		return
	}
	s.log.Debug("handle unloaded", zap.String("handle", h.ID()))
}

// onStatus is the only writer of position, duration and the playing flag.
func (s *Session) onStatus(gen uint64, st api.PlaybackStatus) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("dropping stale status", zap.Uint64("gen", gen))
		return
	}

	evt := api.EventPositionUpdate
	st.PositionMillis = max(st.PositionMillis, 0)
	st.DurationMillis = max(st.DurationMillis, 0)
	if st.DidJustFinish {
		st.IsPlaying = false
		st.PositionMillis = 0
		evt = api.EventTrackEnded
	}
	if st.ErrorMessage != "" {
		s.state.ErrorMessage = st.ErrorMessage
		evt = api.EventError
	} else {
		s.state.ErrorMessage = ""
	}
	s.state.Status = st
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(evt, snap)
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// transport runs op against the live handle. Without a handle it is a no-op.
func (s *Session) transport(ctx context.Context, name string, op func(h engine.Handle) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosed() {
		return playerrors.ErrSessionClosed
	}
	s.mu.RLock()
	h := s.handle
	trackID := s.state.CurrentID()
	s.mu.RUnlock()
	if h == nil {
		return nil
	}

	if err := op(h); err != nil {
		terr := playerrors.NewTransportError(name, trackID, err)
		s.log.Warn("transport failed", zap.String("op", name), zap.String("track", trackID), zap.Error(err))
		s.update(api.EventError, func(st *api.SessionState) {
			st.ErrorMessage = playerrors.Message(terr)
		})
		return terr
	}
	s.clearCommandError(h)
	return nil
}

// clearCommandError drops the error left by an earlier failed command once
// a command on the same handle succeeds.
func (s *Session) clearCommandError(h engine.Handle) {
	s.mu.Lock()
	if s.handle != h || s.state.ErrorMessage == "" {
		s.mu.Unlock()
		return
	}
	s.state.ErrorMessage = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(api.EventStateChange, snap)
}

// Play asks the engine to start. IsPlaying changes only when the engine
// confirms through a status update.
func (s *Session) Play(ctx context.Context) error {
	return s.transport(ctx, "play", func(h engine.Handle) error {
		return h.Play(ctx)
	})
}

// Pause asks the engine to pause.
func (s *Session) Pause(ctx context.Context) error {
	return s.transport(ctx, "pause", func(h engine.Handle) error {
		return h.Pause(ctx)
	})
}

// Stop stops playback and rewinds. The handle stays loaded.
func (s *Session) Stop(ctx context.Context) error {
	return s.transport(ctx, "stop", func(h engine.Handle) error {
		if err := h.Stop(ctx); err != nil {
			return err
		}
		s.update(api.EventStateChange, func(st *api.SessionState) {
			st.Status.PositionMillis = 0
		})
		return nil
	})
}

// Seek moves to positionMillis, clamped to [0, duration] once the engine
// has reported a duration.
func (s *Session) Seek(ctx context.Context, positionMillis int64) error {
	return s.transport(ctx, "seek", func(h engine.Handle) error {
		return h.SetPosition(ctx, s.clampPosition(positionMillis))
	})
}

func (s *Session) clampPosition(positionMillis int64) int64 {
	s.mu.RLock()
	duration := s.state.Status.DurationMillis
	s.mu.RUnlock()
	if duration <= 0 {
		return positionMillis
	}
	return lo.Clamp(positionMillis, 0, duration)
}

// SetRate stores rate for this and every later handle, and applies it to
// the live handle if there is one.
func (s *Session) SetRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return playerrors.ErrInvalidRate
	}
	if s.isClosed() {
		return playerrors.ErrSessionClosed
	}
	s.update(api.EventStateChange, func(st *api.SessionState) {
		st.PlaybackRate = rate
	})
	return s.transport(ctx, "set_rate", func(h engine.Handle) error {
		return h.SetRate(ctx, rate, s.engOpts.PreservePitch)
	})
}

// Retry reloads the last requested track after a failed load. It is a no-op
// before any load and while that track still has a live handle; a failed
// command is retried by issuing the command again.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.RLock()
	req := s.lastReq
	live := s.handle != nil && req != nil && s.state.CurrentID() == req.track.ID
	s.mu.RUnlock()
	if req == nil || live {
		return nil
	}
	return s.Load(ctx, req.track, req.opts)
}

// Unload releases the live handle, cancels an in-flight load and clears the
// current track. It is safe to call at any time, any number of times.
func (s *Session) Unload(ctx context.Context) error {
	s.supersede("")
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.unloadLocked(ctx)
	return nil
}

func (s *Session) unloadLocked(ctx context.Context) {
	s.unloadHandleLocked(ctx)
	s.update(api.EventStateChange, func(st *api.SessionState) {
		st.CurrentTrack = nil
		st.EngineRef = ""
		st.Status = api.PlaybackStatus{}
		st.IsLoading = false
		st.ErrorMessage = ""
	})
}

// Close unloads and marks the session closed. Later operations return
// ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.supersede("")
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.isClosed() {
		return nil
	}
	s.unloadLocked(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// IsSuperseded reports whether err means a newer load or unload replaced
// the call that returned it.
func IsSuperseded(err error) bool {
	return errors.Is(err, context.Canceled)
}
