package action

import (
	"errors"
	"fmt"

	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/uav"
)

var (
	ErrUnknownState        = errors.New("action: event received at unknown state")
	ErrNotStarted          = errors.New("action: event received before start")
	ErrAttemptInFlight     = errors.New("action: attempt already in flight")
	ErrMissingCollaborator = errors.New("action: sender and monitor are required")
)

// Type names an action kind.
type Type string

const (
	TypeConnect Type = "connect"
)

// Action is a procedure fed one inbound event at a time by a dispatcher.
// Start and HandleEvent are never called concurrently with each other.
type Action interface {
	Type() Type
	Start() error
	HandleEvent(ev protocol.Event) error
	IsDone() bool
	State() string
}

// Sender is the outbound side of the link. Send is fire-and-forget from the
// action's point of view; link failures belong to the transport.
type Sender interface {
	Send(b []byte) error
}

// Monitor receives outcome notifications and accepted calibration data.
// Implementations must not call back into the action synchronously.
type Monitor interface {
	NotifyUavEvent(ev uav.Event)
	SetCalibrationSettings(cal protocol.CalibrationSettings)
}

// ProtocolError reports a defect: an event processed in a state the action
// does not recognize. The attempt is aborted.
type ProtocolError struct {
	State string
	Event protocol.Event
	Err   error
}

func (e *ProtocolError) Error() string {
	sig := "<nil>"
	if e.Event != nil {
		sig = e.Event.Signal().String()
	}
	return fmt.Sprintf("%v: event=%s state=%s", e.Err, sig, e.State)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
