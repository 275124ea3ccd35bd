// Package enginetest provides a recording engine binding for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/engine"
)

var _ engine.Binding = (*Binding)(nil)

// Call is one recorded engine call.
type Call struct {
	Op     string
	Handle string
	URI    string
	Value  float64
}

func (c Call) String() string {
	if c.URI != "" {
		return fmt.Sprintf("%s(%s)", c.Op, c.URI)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.Handle)
}

// Binding records every call and tracks live handles. The zero value is
// not usable; call New.
type Binding struct {
	mu      sync.Mutex
	calls   []Call
	handles []*Handle
	live    int
	maxLive int
	seq     int

	// CreateErr, when set, fails every Create.
	CreateErr error
	// TransportErr, when set, fails Play, Pause, Stop, SetPosition and SetRate.
	TransportErr error
	// Gate, when set, blocks Create until a value is received or ctx is done.
	// The handle is still returned after ctx is done, like a platform engine
	// that ignores cancellation.
	Gate chan struct{}
	// Created receives the uri of every Create call as it starts.
	Created chan string
}

// New returns an empty recording binding.
func New() *Binding {
	return &Binding{}
}

// Create records the call and returns a new live handle.
func (b *Binding) Create(ctx context.Context, uri string, opts engine.Options, onStatus engine.StatusFunc) (engine.Handle, error) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Op: "create", URI: uri, Value: opts.Rate})
	gate, created, createErr := b.Gate, b.Created, b.CreateErr
	b.mu.Unlock()

	if created != nil {
		created <- uri
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if createErr != nil {
		return nil, createErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	h := &Handle{
		id:       fmt.Sprintf("h%d", b.seq),
		uri:      uri,
		rate:     opts.Rate,
		playing:  opts.ShouldPlay,
		onStatus: onStatus,
		binding:  b,
	}
	b.handles = append(b.handles, h)
	b.live++
	if b.live > b.maxLive {
		b.maxLive = b.live
	}
	return h, nil
}

func (b *Binding) record(c Call) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
}

// Calls returns a copy of the recorded calls in order.
func (b *Binding) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Count returns how many calls of op were recorded.
func (b *Binding) Count(op string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CountFor returns how many calls of op were recorded against handle id.
func (b *Binding) CountFor(op, id string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Op == op && c.Handle == id {
			n++
		}
	}
	return n
}

// Live returns the number of handles not yet unloaded.
func (b *Binding) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// MaxLive returns the highest number of simultaneously live handles seen.
func (b *Binding) MaxLive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxLive
}

// Handles returns every handle created so far, oldest first.
func (b *Binding) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Handle, len(b.handles))
	copy(out, b.handles)
	return out
}

// Last returns the most recently created handle, or nil.
func (b *Binding) Last() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

// SetTransportErr changes TransportErr while handles are in use.
func (b *Binding) SetTransportErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.TransportErr = err
}

func (b *Binding) transportErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.TransportErr
}

// Handle is a fake engine handle. Status is only delivered through Emit.
type Handle struct {
	id       string
	uri      string
	onStatus engine.StatusFunc
	binding  *Binding

	mu        sync.Mutex
	rate      float64
	position  int64
	playing   bool
	unloaded  bool
	unloadCnt int
}

func (h *Handle) ID() string  { return h.id }
func (h *Handle) URI() string { return h.uri }

// Position returns the last position applied by SetPosition or Stop.
func (h *Handle) Position() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Rate returns the rate the handle currently runs at.
func (h *Handle) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// Unloaded reports whether Unload was called.
func (h *Handle) Unloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}

// Emit pushes st through the handle's status callback, even after unload,
// so tests can simulate a late callback from a torn-down handle.
func (h *Handle) Emit(st api.PlaybackStatus) {
	if h.onStatus != nil {
		h.onStatus(st)
	}
}

func (h *Handle) transport(op string, value float64, apply func()) error {
	h.binding.record(Call{Op: op, Handle: h.id, Value: value})
	if err := h.binding.transportErr(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	apply()
	return nil
}

func (h *Handle) Play(ctx context.Context) error {
	return h.transport("play", 0, func() { h.playing = true })
}

func (h *Handle) Pause(ctx context.Context) error {
	return h.transport("pause", 0, func() { h.playing = false })
}

func (h *Handle) Stop(ctx context.Context) error {
	return h.transport("stop", 0, func() {
		h.playing = false
		h.position = 0
	})
}

func (h *Handle) SetPosition(ctx context.Context, positionMillis int64) error {
	return h.transport("seek", float64(positionMillis), func() { h.position = positionMillis })
}

func (h *Handle) SetRate(ctx context.Context, rate float64, preservePitch bool) error {
	return h.transport("rate", rate, func() { h.rate = rate })
}

func (h *Handle) Unload(ctx context.Context) error {
	h.binding.record(Call{Op: "unload", Handle: h.id})
	h.mu.Lock()
	h.unloadCnt++
	already := h.unloaded
	h.unloaded = true
	h.mu.Unlock()

	if !already {
		h.binding.mu.Lock()
		h.binding.live--
		h.binding.mu.Unlock()
	}
	return nil
}
