// Package engine defines the media engine contract the playback session
// drives, and a beep-backed implementation of it.
package engine

import (
	"context"
	"time"

	"github.com/jscyril/feedaudio/api"
)

// StatusFunc receives status pushed by a handle. It may be called from any
// goroutine.
type StatusFunc func(api.PlaybackStatus)

// Options are applied when a handle is created.
type Options struct {
	ShouldPlay       bool
	Rate             float64
	PreservePitch    bool
	Volume           float64
	ProgressInterval time.Duration
}

// DefaultOptions returns paused, normal-speed, full-volume options.
func DefaultOptions() Options {
	return Options{
		Rate:             1.0,
		PreservePitch:    true,
		Volume:           1.0,
		ProgressInterval: time.Second,
	}
}

// Binding opens sources on the platform media engine.
type Binding interface {
	// Create opens uri and returns a live handle. onStatus receives every
	// status update for the handle until Unload returns.
	Create(ctx context.Context, uri string, opts Options, onStatus StatusFunc) (Handle, error)
}

// Handle is one open source in the media engine. It is owned by exactly one
// session and must be unloaded before it is dropped.
type Handle interface {
	ID() string
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPosition(ctx context.Context, positionMillis int64) error
	SetRate(ctx context.Context, rate float64, preservePitch bool) error
	Unload(ctx context.Context) error
}
