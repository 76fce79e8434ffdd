package uav

import "time"

// EventType is the kind of notification sent to the session manager.
type EventType int

const (
	EventConnected EventType = iota + 1
	EventCalibrationNonStatic
	EventError
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventCalibrationNonStatic:
		return "calibration_non_static"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one notification about the vehicle link.
type Event struct {
	Type    EventType
	Message string
	At      time.Time
}

func NewEvent(t EventType) Event {
	return Event{Type: t, At: time.Now()}
}

func NewErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg, At: time.Now()}
}

// Terminal reports whether e ends a handshake attempt.
func (e Event) Terminal() bool {
	return e.Type == EventConnected || e.Type == EventError
}
