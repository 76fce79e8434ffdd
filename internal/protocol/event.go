package protocol

// Event is one inbound occurrence decoded from the link. The set of variants
// is closed: SignalEvent and PayloadEvent.
type Event interface {
	Signal() SignalData
	isEvent()
}

// SignalEvent carries a bare (command, parameter) pair.
type SignalEvent struct {
	Data SignalData
}

func (e SignalEvent) Signal() SignalData { return e.Data }
func (SignalEvent) isEvent()             {}

// PayloadEvent carries a typed payload for a data-bearing command.
type PayloadEvent struct {
	Data    SignalData
	Payload Payload
}

func (e PayloadEvent) Signal() SignalData { return e.Data }
func (PayloadEvent) isEvent()             {}

// DataType is the command of the carried payload.
func (e PayloadEvent) DataType() Command {
	return e.Data.Command
}

// MatchSignal reports whether ev is a signal event matching want. Payload
// events never match a bare signal.
func MatchSignal(ev Event, want SignalData) bool {
	se, ok := ev.(SignalEvent)
	return ok && se.Data.Matches(want)
}
