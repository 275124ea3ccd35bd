package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/api"
	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

// Ensure BeepBinding implements Binding at compile time
var _ Binding = (*BeepBinding)(nil)

const defaultSampleRate = beep.SampleRate(44100)

// BeepBinding plays sources through the beep speaker. Every handle is a
// separate streamer on the speaker mixer.
type BeepBinding struct {
	client     *http.Client
	sampleRate beep.SampleRate
	log        *zap.Logger

	initOnce sync.Once
	initErr  error
}

// BeepOption configures a BeepBinding.
type BeepOption func(*BeepBinding)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) BeepOption {
	return func(b *BeepBinding) { b.client = c }
}

// WithLogger sets the binding logger.
func WithLogger(l *zap.Logger) BeepOption {
	return func(b *BeepBinding) { b.log = l }
}

// WithSampleRate sets the speaker output rate.
func WithSampleRate(sr int) BeepOption {
	return func(b *BeepBinding) { b.sampleRate = beep.SampleRate(sr) }
}

// NewBeepBinding creates a binding that plays through the default audio device.
func NewBeepBinding(opts ...BeepOption) *BeepBinding {
	b := &BeepBinding{
		client:     &http.Client{Timeout: time.Minute},
		sampleRate: defaultSampleRate,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BeepBinding) initSpeaker() error {
	b.initOnce.Do(func() {
		b.initErr = speaker.Init(b.sampleRate, b.sampleRate.N(time.Second/10))
	})
	return b.initErr
}

// Create opens and decodes uri, then attaches it to the speaker paused
// unless opts.ShouldPlay is set.
func (b *BeepBinding) Create(ctx context.Context, uri string, opts Options, onStatus StatusFunc) (Handle, error) {
	if opts.Rate <= 0 {
		opts.Rate = 1.0
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}

	src, err := b.open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}

	streamer, format, err := DecodeAudio(src, uri)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("decode %s: %w", uri, err)
	}

	if err := b.initSpeaker(); err != nil {
		streamer.Close()
		return nil, fmt.Errorf("speaker init: %w", err)
	}

	h := &beepHandle{
		id:       uuid.NewString(),
		streamer: streamer,
		format:   format,
		baseRate: float64(format.SampleRate) / float64(b.sampleRate),
		onStatus: onStatus,
		finished: make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      b.log,
	}
	h.resampler = beep.ResampleRatio(4, h.baseRate*opts.Rate, streamer)
	h.ctrl = &beep.Ctrl{Streamer: h.resampler, Paused: !opts.ShouldPlay}
	vol := lo.Clamp(opts.Volume, 0, 1)
	h.volume = &effects.Volume{
		Streamer: h.ctrl,
		Base:     2,
		Volume:   math.Log2(max(vol, 1e-3)),
		Silent:   vol == 0,
	}
	if !opts.PreservePitch {
		b.log.Debug("pitch follows rate", zap.String("handle", h.id))
	}

	speaker.Play(&handleStreamer{h: h})

	h.wg.Add(1)
	go h.report(opts.ProgressInterval)

	h.push(false)
	b.log.Debug("engine handle created",
		zap.String("handle", h.id),
		zap.String("uri", uri),
		zap.Int("sample_rate", int(format.SampleRate)))
	return h, nil
}

// open returns a seekable reader for a file path, file:// URL or http(s) URL.
func (b *BeepBinding) open(ctx context.Context, uri string) (io.ReadSeekCloser, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return os.Open(uri)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return memSource{bytes.NewReader(data)}, nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

type memSource struct {
	*bytes.Reader
}

func (memSource) Close() error { return nil }

// beepHandle is one decoded source attached to the speaker mixer.
type beepHandle struct {
	id        string
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	volume    *effects.Volume
	baseRate  float64

	onStatus StatusFunc
	finished chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	log      *zap.Logger

	// guarded by the speaker lock
	closed bool
}

func (h *beepHandle) ID() string { return h.id }

// handleStreamer keeps a finished track on the mixer, rewound and paused,
// until the handle is unloaded.
type handleStreamer struct {
	h *beepHandle
}

func (s *handleStreamer) Stream(samples [][2]float64) (int, bool) {
	h := s.h
	if h.closed {
		return 0, false
	}
	n, ok := h.volume.Stream(samples)
	if ok && n == len(samples) {
		return n, true
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	if !h.ctrl.Paused {
		h.ctrl.Paused = true
		_ = h.streamer.Seek(0)
		select {
		case h.finished <- struct{}{}:
		default:
		}
	}
	return len(samples), true
}

func (s *handleStreamer) Err() error { return s.h.streamer.Err() }

// report pushes progress while playing, and the one-shot finish status.
func (h *beepHandle) report(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-h.finished:
			h.push(true)
		case <-ticker.C:
			speaker.Lock()
			playing := !h.ctrl.Paused
			speaker.Unlock()
			if playing {
				h.push(false)
			}
		}
	}
}

func (h *beepHandle) snapshot() (api.PlaybackStatus, bool) {
	speaker.Lock()
	defer speaker.Unlock()
	if h.closed {
		return api.PlaybackStatus{}, false
	}
	return api.PlaybackStatus{
		IsLoaded:       true,
		PositionMillis: h.format.SampleRate.D(h.streamer.Position()).Milliseconds(),
		DurationMillis: h.format.SampleRate.D(h.streamer.Len()).Milliseconds(),
		IsPlaying:      !h.ctrl.Paused,
	}, true
}

func (h *beepHandle) push(finished bool) {
	if h.onStatus == nil {
		return
	}
	st, ok := h.snapshot()
	if !ok {
		return
	}
	if finished {
		st.DidJustFinish = true
		st.PositionMillis = 0
		st.IsPlaying = false
	}
	h.onStatus(st)
}

// withLive runs fn under the speaker lock unless the handle is unloaded.
func (h *beepHandle) withLive(fn func() error) error {
	speaker.Lock()
	if h.closed {
		speaker.Unlock()
		return playerrors.ErrHandleUnloaded
	}
	err := fn()
	speaker.Unlock()
	if err == nil {
		h.push(false)
	}
	return err
}

func (h *beepHandle) Play(ctx context.Context) error {
	return h.withLive(func() error {
		h.ctrl.Paused = false
		return nil
	})
}

func (h *beepHandle) Pause(ctx context.Context) error {
	return h.withLive(func() error {
		h.ctrl.Paused = true
		return nil
	})
}

func (h *beepHandle) Stop(ctx context.Context) error {
	return h.withLive(func() error {
		h.ctrl.Paused = true
		return h.streamer.Seek(0)
	})
}

func (h *beepHandle) SetPosition(ctx context.Context, positionMillis int64) error {
	return h.withLive(func() error {
		n := h.format.SampleRate.N(time.Duration(positionMillis) * time.Millisecond)
		last := h.streamer.Len() - 1
		if last < 0 {
			last = 0
		}
		return h.streamer.Seek(lo.Clamp(n, 0, last))
	})
}

func (h *beepHandle) SetRate(ctx context.Context, rate float64, preservePitch bool) error {
	if rate <= 0 {
		return playerrors.ErrInvalidRate
	}
	return h.withLive(func() error {
		h.resampler.SetRatio(h.baseRate * rate)
		return nil
	})
}

// Unload detaches the streamer from the speaker and closes the source. No
// status is pushed once Unload returns.
func (h *beepHandle) Unload(ctx context.Context) error {
	speaker.Lock()
	if h.closed {
		speaker.Unlock()
		return nil
	}
	h.closed = true
	speaker.Unlock()

	close(h.done)
	h.wg.Wait()

	if err := h.streamer.Close(); err != nil {
		h.log.Warn("close streamer", zap.String("handle", h.id), zap.Error(err))
		return err
	}
	h.log.Debug("engine handle unloaded", zap.String("handle", h.id))
	return nil
}
