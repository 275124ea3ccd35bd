// Package waveform resolves the amplitude samples drawn next to a track.
//
// Samples come from the track itself when it carries them, otherwise from a
// JSON document at the track's waveform URL. Each URL is fetched at most once
// per process; failures are remembered too, so a broken URL is not retried
// on every redraw.
package waveform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jscyril/feedaudio/api"
	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

const (
	userAgent      = "feedaudio/1.0"
	maxBodyBytes   = 4 << 20
	defaultTimeout = 5 * time.Second
)

// Data is a parsed waveform document.
type Data struct {
	Samples        []float64
	DurationMillis int64
}

type document struct {
	Waveform []float64 `json:"waveform"`
	Duration float64   `json:"duration"`
}

type entry struct {
	data Data
	err  error
}

// Fetcher downloads waveform documents once per URL.
type Fetcher struct {
	httpClient *http.Client
	log        *zap.Logger

	group   singleflight.Group
	cacheMu sync.RWMutex
	cache   map[string]entry
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher creates a fetcher with an empty cache.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop(),
		cache:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Peek returns the cached result for url without fetching. fetched is false
// when url has not been fetched yet.
func (f *Fetcher) Peek(url string) (data Data, fetched bool, err error) {
	f.cacheMu.RLock()
	defer f.cacheMu.RUnlock()
	e, ok := f.cache[url]
	return e.data, ok, e.err
}

// Fetch returns the waveform at url. Concurrent callers for the same url
// share one request, and the outcome is cached for the life of the fetcher.
// A cancelled ctx abandons the wait but not the shared request.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Data, error) {
	if data, fetched, err := f.Peek(url); fetched {
		return data, err
	}

	ch := f.group.DoChan(url, func() (interface{}, error) {
		data, err := f.download(context.WithoutCancel(ctx), url)
		if err != nil {
			err = playerrors.NewWaveformError(url, err)
			f.log.Debug("waveform fetch failed", zap.String("url", url), zap.Error(err))
		}
		f.cacheMu.Lock()
		f.cache[url] = entry{data: data, err: err}
		f.cacheMu.Unlock()
		return data, err
	})

	select {
	case <-ctx.Done():
		return Data{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Data{}, res.Err
		}
		return res.Val.(Data), nil
	}
}

func (f *Fetcher) download(ctx context.Context, url string) (Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Data{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Data{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Data{}, fmt.Errorf("reading response: %w", err)
	}
	return Parse(body)
}

// Parse decodes a {"waveform": [...], "duration": seconds} document and
// normalises the samples to [0,1].
func Parse(body []byte) (Data, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Data{}, fmt.Errorf("parsing waveform: %w", err)
	}
	if len(doc.Waveform) == 0 {
		return Data{}, playerrors.ErrWaveformUnavailable
	}
	return Data{
		Samples:        Normalize(doc.Waveform),
		DurationMillis: int64(math.Round(max(doc.Duration, 0) * 1000)),
	}, nil
}

// Normalize scales values so the loudest magnitude is 1. Non-finite values
// count as silence.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	var peak float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = math.Abs(v)
		peak = max(peak, out[i])
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] = lo.Clamp(out[i]/peak, 0, 1)
	}
	return out
}

// Downsample reduces samples to at most width buckets using the RMS of each
// bucket. Shorter inputs are returned as a copy.
func Downsample(samples []float64, width int) []float64 {
	if width <= 0 {
		return nil
	}
	if len(samples) <= width {
		return append([]float64(nil), samples...)
	}

	out := make([]float64, width)
	for b := 0; b < width; b++ {
		start := b * len(samples) / width
		end := (b + 1) * len(samples) / width
		var sum float64
		for _, v := range samples[start:end] {
			sum += v * v
		}
		out[b] = math.Sqrt(sum / float64(end-start))
	}
	return out
}

// Resolver picks the waveform source for a track.
type Resolver struct {
	fetcher *Fetcher
	width   int
}

// NewResolver creates a resolver producing at most width samples.
func NewResolver(fetcher *Fetcher, width int) *Resolver {
	return &Resolver{fetcher: fetcher, width: width}
}

// Width returns the number of samples Resolve produces at most.
func (r *Resolver) Width() int {
	return r.width
}

// Resolve returns display samples for track: inline samples first, then the
// waveform URL. ErrWaveformUnavailable means the caller draws a placeholder.
func (r *Resolver) Resolve(ctx context.Context, track api.Track) ([]float64, error) {
	if len(track.Waveform) > 0 {
		return Downsample(Normalize(track.Waveform), r.width), nil
	}
	if track.WaveformURL == "" || r.fetcher == nil {
		return nil, playerrors.ErrWaveformUnavailable
	}
	data, err := r.fetcher.Fetch(ctx, track.WaveformURL)
	if err != nil {
		return nil, err
	}
	return Downsample(data.Samples, r.width), nil
}

// Cached is Resolve without network access. resolved is false when the
// track's waveform URL has not been fetched yet.
func (r *Resolver) Cached(track api.Track) (samples []float64, resolved bool, err error) {
	if len(track.Waveform) > 0 {
		return Downsample(Normalize(track.Waveform), r.width), true, nil
	}
	if track.WaveformURL == "" || r.fetcher == nil {
		return nil, true, playerrors.ErrWaveformUnavailable
	}
	data, fetched, err := r.fetcher.Peek(track.WaveformURL)
	if !fetched || err != nil {
		return nil, fetched, err
	}
	return Downsample(data.Samples, r.width), true, nil
}
