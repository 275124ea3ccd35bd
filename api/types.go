package api

// Track is a playable audio item with identity, source URLs and display metadata.
type Track struct {
	ID                 string    `json:"id"`
	SourceURL          string    `json:"source_url"`
	PreviewURL         string    `json:"preview_url,omitempty"`
	Title              string    `json:"title"`
	Author             string    `json:"author"`
	CoverURL           string    `json:"cover_url,omitempty"`
	Waveform           []float64 `json:"waveform,omitempty"`
	WaveformURL        string    `json:"waveform_url,omitempty"`
	DurationHintMillis int64     `json:"duration_hint_ms,omitempty"`
	OriginPostID       string    `json:"origin_post_id,omitempty"`
}

// Source returns the URI to open. The preview URL wins only when preview
// mode is requested and the track has one.
func (t Track) Source(usePreview bool) string {
	if usePreview && t.PreviewURL != "" {
		return t.PreviewURL
	}
	return t.SourceURL
}

// Clone returns a deep copy so snapshots never share the waveform slice.
func (t Track) Clone() *Track {
	c := t
	if t.Waveform != nil {
		c.Waveform = make([]float64, len(t.Waveform))
		copy(c.Waveform, t.Waveform)
	}
	return &c
}

// PlaybackStatus is the normalized status pushed by the media engine.
type PlaybackStatus struct {
	IsLoaded       bool   `json:"is_loaded"`
	PositionMillis int64  `json:"position_ms"`
	DurationMillis int64  `json:"duration_ms"`
	IsPlaying      bool   `json:"is_playing"`
	DidJustFinish  bool   `json:"did_just_finish"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Phase is the coarse state of a session as seen by the player surfaces.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReadyPaused
	PhaseReadyPlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReadyPaused:
		return "paused"
	case PhaseReadyPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// SessionState is a read-only snapshot of a playback session.
type SessionState struct {
	CurrentTrack *Track         `json:"current_track,omitempty"`
	EngineRef    string         `json:"engine_ref,omitempty"`
	Status       PlaybackStatus `json:"status"`
	IsLoading    bool           `json:"is_loading"`
	PlaybackRate float64        `json:"playback_rate"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// HasHandle reports whether an engine handle is live.
func (s SessionState) HasHandle() bool {
	return s.EngineRef != ""
}

// IsPlaying reports the engine-confirmed playing flag.
func (s SessionState) IsPlaying() bool {
	return s.Status.IsPlaying
}

// CurrentID returns the current track id or "".
func (s SessionState) CurrentID() string {
	if s.CurrentTrack == nil {
		return ""
	}
	return s.CurrentTrack.ID
}

// DurationMillis returns the engine duration, falling back to the track hint
// until the engine reports one.
func (s SessionState) DurationMillis() int64 {
	if s.Status.DurationMillis > 0 {
		return s.Status.DurationMillis
	}
	if s.CurrentTrack != nil && s.CurrentTrack.DurationHintMillis > 0 {
		return s.CurrentTrack.DurationHintMillis
	}
	return 0
}

// Progress returns position/duration in [0,1]; 0 when duration is unknown.
func (s SessionState) Progress() float64 {
	return Progress(s.Status.PositionMillis, s.DurationMillis())
}

// Phase derives the coarse playback phase.
func (s SessionState) Phase() Phase {
	switch {
	case s.CurrentTrack == nil:
		return PhaseIdle
	case s.IsLoading:
		return PhaseLoading
	case !s.HasHandle():
		return PhaseIdle
	case s.Status.IsPlaying:
		return PhaseReadyPlaying
	default:
		return PhaseReadyPaused
	}
}

// Progress computes position/duration guarded against a zero duration.
func Progress(positionMillis, durationMillis int64) float64 {
	if durationMillis <= 0 || positionMillis <= 0 {
		return 0
	}
	p := float64(positionMillis) / float64(durationMillis)
	if p > 1 {
		return 1
	}
	return p
}
