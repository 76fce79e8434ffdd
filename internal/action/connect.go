package action

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/skyctl/internal/observability"
	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/uav"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

// ConnectionTimeout bounds the wait for the first acknowledgment.
const ConnectionTimeout = 5000 * time.Millisecond

// TimeoutMessage is reported when the vehicle never acknowledges START.
const TimeoutMessage = "Timeout waiting for initial command response"

// Connection handshake states.
const (
	StateIdle                     = "Idle"
	StateAwaitingInitialAck       = "AwaitingInitialAck"
	StateAwaitingCalibrationReady = "AwaitingCalibrationReady"
	StateAwaitingCalibrationData  = "AwaitingCalibrationData"
	StateAwaitingFinalAck         = "AwaitingFinalAck"
)

const (
	eventInitialAck          = "initial_ack"
	eventCalibrationReady    = "calibration_ready"
	eventCalibrationAccepted = "calibration_accepted"
	eventFinalAck            = "final_ack"
	eventAbort               = "abort"
)

var (
	sigStartStart     = protocol.NewSignal(protocol.CmdStart, protocol.ParamStart)
	sigStartAck       = protocol.NewSignal(protocol.CmdStart, protocol.ParamAck)
	sigCalibReady     = protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamReady)
	sigCalibNonStatic = protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamNonStatic)
	sigCalibAck       = protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamAck)
	sigCalibDataBad   = protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamDataInvalid)
	sigAppLoopStart   = protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamStart)
	sigAppLoopAck     = protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamAck)
)

var connectTransitions = fsm.Events{
	{Name: eventInitialAck, Src: []string{StateAwaitingInitialAck}, Dst: StateAwaitingCalibrationReady},
	{Name: eventCalibrationReady, Src: []string{StateAwaitingCalibrationReady}, Dst: StateAwaitingCalibrationData},
	{Name: eventCalibrationAccepted, Src: []string{StateAwaitingCalibrationData}, Dst: StateAwaitingFinalAck},
	{Name: eventFinalAck, Src: []string{StateAwaitingFinalAck}, Dst: StateIdle},
	{
		Name: eventAbort,
		Src: []string{
			StateAwaitingInitialAck,
			StateAwaitingCalibrationReady,
			StateAwaitingCalibrationData,
			StateAwaitingFinalAck,
		},
		Dst: StateIdle,
	},
}

// ConnectConfig tunes a ConnectAction.
type ConnectConfig struct {
	Timeout time.Duration
	Timer   Timer
}

func (c ConnectConfig) WithDefaults() ConnectConfig {
	if c.Timeout <= 0 {
		c.Timeout = ConnectionTimeout
	}
	if c.Timer == nil {
		c.Timer = NewAfterFuncTimer()
	}
	return c
}

// ConnectAction drives the bring-up handshake:
//
//	START/START -> START/ACK -> CALIBRATION_SETTINGS/READY -> calibration data
//	-> CALIBRATION_SETTINGS/ACK + APP_LOOP/START -> APP_LOOP/ACK
//
// State, the done flag and the attempt generation are guarded by mu; the
// timer callback takes mu too, so a transition out of AwaitingInitialAck is
// always observed by a concurrently expiring timer.
type ConnectAction struct {
	sender  Sender
	monitor Monitor
	cfg     ConnectConfig

	mu         sync.Mutex
	machine    *fsm.FSM
	done       bool
	terminated bool
	attempt    uint64
	attemptID  string
}

func NewConnectAction(sender Sender, monitor Monitor, cfg ConnectConfig) (*ConnectAction, error) {
	if sender == nil || monitor == nil {
		return nil, ErrMissingCollaborator
	}
	a := &ConnectAction{
		sender:     sender,
		monitor:    monitor,
		cfg:        cfg.WithDefaults(),
		terminated: true,
	}
	a.machine = fsm.NewFSM(StateIdle, connectTransitions, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Info().
				Str("attempt", a.attemptID).
				Str("from", e.Src).
				Str("to", e.Dst).
				Msg("connect: transition")
			observability.RecordHandshakeTransition(e.Src, e.Dst)
		},
	})
	return a, nil
}

func (a *ConnectAction) Type() Type {
	return TypeConnect
}

// Start begins a new attempt. It is rejected while a previous attempt is
// still in flight; an attempt parked by a timeout counts as terminated.
func (a *ConnectAction) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.terminated {
		return ErrAttemptInFlight
	}

	a.cfg.Timer.Cancel()
	a.attempt++
	a.attemptID = uuid.NewString()
	a.done = false
	a.terminated = false
	prev := a.machine.Current()
	a.machine.SetState(StateAwaitingInitialAck)
	log.Info().
		Str("attempt", a.attemptID).
		Str("from", prev).
		Str("to", StateAwaitingInitialAck).
		Msg("connect: starting connection procedure")
	observability.RecordHandshakeAttempt()

	a.send(sigStartStart.Message())

	attempt := a.attempt
	if !a.cfg.Timer.Arm(a.cfg.Timeout, func() { a.onTimeout(attempt) }) {
		log.Warn().Str("attempt", a.attemptID).Msg("connect: timer already pending, not re-armed")
	}
	return nil
}

// HandleEvent advances the handshake. Events that do not fit the current
// state are logged and ignored. A *ProtocolError is returned only for events
// processed outside a recognized, started state.
func (a *ConnectAction) HandleEvent(ev protocol.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.machine.Current()
	if a.terminated && before != StateIdle {
		log.Debug().
			Str("attempt", a.attemptID).
			Str("state", before).
			Str("signal", signalOf(ev)).
			Msg("connect: attempt terminated, event ignored")
		return nil
	}

	var err error
	switch before {
	case StateIdle:
		return &ProtocolError{State: before, Event: ev, Err: ErrNotStarted}

	case StateAwaitingInitialAck:
		if protocol.MatchSignal(ev, sigStartAck) {
			a.cfg.Timer.Cancel()
			err = a.fire(eventInitialAck)
			log.Info().Str("attempt", a.attemptID).Msg("connect: initial command received successfully")
		} else {
			a.unexpected(ev, before)
		}

	case StateAwaitingCalibrationReady:
		switch {
		case protocol.MatchSignal(ev, sigCalibReady):
			err = a.fire(eventCalibrationReady)
			log.Info().Str("attempt", a.attemptID).Msg("connect: calibration done, data ready")
		case protocol.MatchSignal(ev, sigCalibNonStatic):
			log.Warn().Str("attempt", a.attemptID).Msg("connect: calibration non static")
			observability.RecordHandshakeOutcome(uav.EventCalibrationNonStatic.String())
			a.monitor.NotifyUavEvent(uav.NewEvent(uav.EventCalibrationNonStatic))
		default:
			a.unexpected(ev, before)
		}

	case StateAwaitingCalibrationData:
		cal, ok := calibrationOf(ev)
		if !ok {
			a.unexpected(ev, before)
			break
		}
		if cal.IsValid() {
			log.Info().Str("attempt", a.attemptID).Msg("connect: calibration settings received")
			err = a.fire(eventCalibrationAccepted)
			a.send(sigCalibAck.Message())
			a.monitor.SetCalibrationSettings(cal)
			a.send(sigAppLoopStart.Message())
		} else {
			log.Warn().Str("attempt", a.attemptID).Msg("connect: calibration data invalid, responding with DATA_INVALID")
			observability.RecordCalibrationRejected()
			a.send(sigCalibDataBad.Message())
		}

	case StateAwaitingFinalAck:
		if protocol.MatchSignal(ev, sigAppLoopAck) {
			err = a.fire(eventFinalAck)
			a.done = true
			a.terminated = true
			log.Info().Str("attempt", a.attemptID).Msg("connect: final command received, connection procedure done")
			observability.RecordHandshakeOutcome(uav.EventConnected.String())
			a.monitor.NotifyUavEvent(uav.NewEvent(uav.EventConnected))
		} else {
			a.unexpected(ev, before)
		}

	default:
		a.abortLocked()
		return &ProtocolError{State: before, Event: ev, Err: ErrUnknownState}
	}

	if err != nil {
		a.abortLocked()
		return &ProtocolError{State: before, Event: ev, Err: err}
	}
	if a.machine.Current() == before {
		log.Debug().Str("attempt", a.attemptID).Str("state", before).Msg("connect: no state change")
	}
	return nil
}

// IsDone is true once the vehicle acknowledged APP_LOOP/START.
func (a *ConnectAction) IsDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

func (a *ConnectAction) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Current()
}

// Terminated reports whether the current attempt produced its outcome
// (connected or timeout) or was aborted.
func (a *ConnectAction) Terminated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminated
}

// AttemptID identifies the current attempt in logs and status output.
func (a *ConnectAction) AttemptID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attemptID
}

// Abort drops the current attempt without an outcome notification.
func (a *ConnectAction) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abortLocked()
}

func (a *ConnectAction) onTimeout(attempt uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if attempt != a.attempt || a.terminated || a.machine.Current() != StateAwaitingInitialAck {
		return
	}
	// The attempt stays parked in AwaitingInitialAck; the caller decides
	// whether to Start again.
	a.terminated = true
	log.Error().Str("attempt", a.attemptID).Dur("timeout", a.cfg.Timeout).Msg("connect: " + TimeoutMessage)
	observability.RecordHandshakeOutcome(uav.EventError.String())
	a.monitor.NotifyUavEvent(uav.NewErrorEvent(TimeoutMessage))
}

func (a *ConnectAction) abortLocked() {
	a.cfg.Timer.Cancel()
	a.terminated = true
	if a.machine.Current() == StateIdle {
		return
	}
	if err := a.machine.Event(context.Background(), eventAbort); err != nil {
		a.machine.SetState(StateIdle)
	}
	log.Error().Str("attempt", a.attemptID).Msg("connect: attempt aborted")
}

func (a *ConnectAction) fire(event string) error {
	err := a.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (a *ConnectAction) send(msg protocol.Message) {
	b, err := msg.Serialize()
	if err != nil {
		log.Error().Err(err).Str("signal", msg.Signal.String()).Msg("connect: serialize failed")
		return
	}
	if err := a.sender.Send(b); err != nil {
		log.Warn().Err(err).Str("signal", msg.Signal.String()).Msg("connect: send failed")
	}
}

func (a *ConnectAction) unexpected(ev protocol.Event, state string) {
	log.Debug().
		Str("attempt", a.attemptID).
		Str("state", state).
		Str("signal", signalOf(ev)).
		Msg("connect: unexpected event")
}

func calibrationOf(ev protocol.Event) (protocol.CalibrationSettings, bool) {
	pe, ok := ev.(protocol.PayloadEvent)
	if !ok || pe.DataType() != protocol.CmdCalibrationSettingsData {
		return protocol.CalibrationSettings{}, false
	}
	cal, ok := pe.Payload.(protocol.CalibrationSettings)
	return cal, ok
}

func signalOf(ev protocol.Event) string {
	if ev == nil {
		return "<nil>"
	}
	return ev.Signal().String()
}
