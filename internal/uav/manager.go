package uav

import (
	"sync"
	"time"

	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHistoryLimit           = 64
	DefaultControlDataSendingFreq = 25.0
)

// Status is the session manager's view of the vehicle link.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusFailed       Status = "failed"
)

// Snapshot is a copy of the manager state safe to hand out.
type Snapshot struct {
	Status         Status
	LastEvent      *Event
	Calibration    *protocol.CalibrationSettings
	CalibrationAt  time.Time
	NonStaticCount int
	History        []Event
}

// Manager owns vehicle session state: handshake outcomes and the accepted
// calibration settings.
type Manager struct {
	mu             sync.RWMutex
	status         Status
	calibration    *protocol.CalibrationSettings
	calibrationAt  time.Time
	nonStaticCount int
	history        []Event
	limit          int
	subs           map[int]chan Event
	nextSub        int
	freq           float64
}

func NewManager() *Manager {
	return &Manager{
		status: StatusDisconnected,
		limit:  DefaultHistoryLimit,
		subs:   make(map[int]chan Event),
		freq:   DefaultControlDataSendingFreq,
	}
}

// ControlDataSendingFreq is the rate in Hz at which control data is streamed
// once connected.
func (m *Manager) ControlDataSendingFreq() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.freq
}

func (m *Manager) SetControlDataSendingFreq(hz float64) {
	if hz <= 0 {
		return
	}
	m.mu.Lock()
	m.freq = hz
	m.mu.Unlock()
}

// MarkConnecting records that a handshake attempt has started.
func (m *Manager) MarkConnecting() {
	m.mu.Lock()
	m.status = StatusConnecting
	m.mu.Unlock()
}

// NotifyUavEvent records ev and fans it out to subscribers. Slow subscribers
// drop events rather than block the caller.
func (m *Manager) NotifyUavEvent(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	m.mu.Lock()
	switch ev.Type {
	case EventConnected:
		m.status = StatusConnected
	case EventError:
		m.status = StatusFailed
	case EventDisconnected:
		m.status = StatusDisconnected
	case EventCalibrationNonStatic:
		m.nonStaticCount++
	}
	m.history = append(m.history, ev)
	if len(m.history) > m.limit {
		m.history = m.history[len(m.history)-m.limit:]
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("event", ev.Type.String()).Msg("uav: subscriber full, dropping event")
		}
	}
	m.mu.Unlock()

	logEvent(ev)
}

// SetCalibrationSettings takes ownership of an accepted calibration record.
func (m *Manager) SetCalibrationSettings(cal protocol.CalibrationSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calibration = &cal
	m.calibrationAt = time.Now()
	log.Info().Uint8("board", cal.BoardType).Msg("uav: calibration settings stored")
}

func (m *Manager) CalibrationSettings() (protocol.CalibrationSettings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.calibration == nil {
		return protocol.CalibrationSettings{}, false
	}
	return *m.calibration, true
}

// Subscribe returns a buffered channel of future events and a cancel func.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Snapshot{
		Status:         m.status,
		CalibrationAt:  m.calibrationAt,
		NonStaticCount: m.nonStaticCount,
		History:        append([]Event(nil), m.history...),
	}
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		out.LastEvent = &last
	}
	if m.calibration != nil {
		cal := *m.calibration
		out.Calibration = &cal
	}
	return out
}

func logEvent(ev Event) {
	e := log.Info()
	if ev.Type == EventError {
		e = log.Error()
	}
	e.Str("event", ev.Type.String()).Str("message", ev.Message).Msg("uav: event")
}
