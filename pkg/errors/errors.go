package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrTrackNotFound       = errors.New("track not found")
	ErrPostNotFound        = errors.New("post not found")
	ErrNoAudio             = errors.New("post has no audio attachment")
	ErrNoSource            = errors.New("track has no playable source")
	ErrInvalidFormat       = errors.New("unsupported audio format")
	ErrInvalidRate         = errors.New("playback rate must be greater than zero")
	ErrSessionClosed       = errors.New("playback session is closed")
	ErrHandleUnloaded      = errors.New("engine handle already unloaded")
	ErrWaveformUnavailable = errors.New("waveform unavailable")
)

// Kind classifies a failure for the player surfaces.
type Kind int

const (
	KindLoad Kind = iota + 1
	KindTransport
	KindWaveform
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load failure"
	case KindTransport:
		return "transport failure"
	case KindWaveform:
		return "waveform fetch failure"
	default:
		return "failure"
	}
}

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op    string // Operation that failed
	Kind  Kind
	Track string // Track ID if applicable
	Err   error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s failed for track %s: %v", e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a PlayerError for a source that could not be opened.
func NewLoadError(track string, err error) *PlayerError {
	return &PlayerError{Op: "load", Kind: KindLoad, Track: track, Err: err}
}

// NewTransportError creates a PlayerError for a rejected transport command.
func NewTransportError(op, track string, err error) *PlayerError {
	return &PlayerError{Op: op, Kind: KindTransport, Track: track, Err: err}
}

// NewWaveformError creates a PlayerError for a waveform that could not be
// fetched or parsed. Playback is never affected by it.
func NewWaveformError(url string, err error) *PlayerError {
	return &PlayerError{Op: "waveform " + url, Kind: KindWaveform, Err: err}
}

// IsKind reports whether err is a PlayerError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *PlayerError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Message returns the text surfaced to the user for err.
func Message(err error) string {
	var pe *PlayerError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ScanError is a local file that could not be read while building a feed.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
