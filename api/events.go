package api

// EventType identifies what changed in a session or coordinator.
type EventType int

const (
	EventStateChange EventType = iota
	EventTrackStarted
	EventTrackEnded
	EventPositionUpdate
	EventError
	EventVisibilityChange
)

// AllEventTypes lists every event type a subscriber can receive.
var AllEventTypes = []EventType{
	EventStateChange,
	EventTrackStarted,
	EventTrackEnded,
	EventPositionUpdate,
	EventError,
	EventVisibilityChange,
}

func (t EventType) String() string {
	switch t {
	case EventStateChange:
		return "state_change"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventPositionUpdate:
		return "position_update"
	case EventError:
		return "error"
	case EventVisibilityChange:
		return "visibility_change"
	default:
		return "unknown"
	}
}

// AudioEvent carries a snapshot of the state at the time of the change.
// Payload is a SessionState for session events and a Visibility for
// EventVisibilityChange.
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}

// Visibility holds the presentation flags of the global player.
type Visibility struct {
	PlayerVisible     bool `json:"player_visible"`
	FullScreenVisible bool `json:"full_screen_visible"`
}
