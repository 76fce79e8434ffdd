package protocol

import "fmt"

// Command identifies what a message is about.
type Command uint16

const (
	CmdStart Command = iota + 1
	CmdCalibrationSettings
	CmdCalibrationSettingsData
	CmdAppLoop
	CmdPing
	CmdDisconnect
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "START"
	case CmdCalibrationSettings:
		return "CALIBRATION_SETTINGS"
	case CmdCalibrationSettingsData:
		return "CALIBRATION_SETTINGS_DATA"
	case CmdAppLoop:
		return "APP_LOOP"
	case CmdPing:
		return "PING"
	case CmdDisconnect:
		return "DISCONNECT"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint16(c))
	}
}

// Parameter qualifies a command.
type Parameter uint16

const (
	ParamNone Parameter = iota
	ParamStart
	ParamAck
	ParamReady
	ParamNonStatic
	ParamDataInvalid
	ParamBreak
)

func (p Parameter) String() string {
	switch p {
	case ParamNone:
		return "NONE"
	case ParamStart:
		return "START"
	case ParamAck:
		return "ACK"
	case ParamReady:
		return "READY"
	case ParamNonStatic:
		return "NON_STATIC"
	case ParamDataInvalid:
		return "DATA_INVALID"
	case ParamBreak:
		return "BREAK"
	default:
		return fmt.Sprintf("PARAMETER(%d)", uint16(p))
	}
}

// SignalData is the (command, parameter) identity of a message.
type SignalData struct {
	Command   Command
	Parameter Parameter
}

func NewSignal(cmd Command, param Parameter) SignalData {
	return SignalData{Command: cmd, Parameter: param}
}

// Matches compares command and parameter only.
func (s SignalData) Matches(other SignalData) bool {
	return s.Command == other.Command && s.Parameter == other.Parameter
}

func (s SignalData) String() string {
	return s.Command.String() + "/" + s.Parameter.String()
}

// Message returns the payload-less message for s.
func (s SignalData) Message() Message {
	return Message{Signal: s}
}

// Payload is typed data carried by a data-bearing command.
type Payload interface {
	DataType() Command
	Bytes() []byte
}

// Message is an immutable signal with an optional payload.
type Message struct {
	Signal  SignalData
	Payload Payload
}

func NewPayloadMessage(param Parameter, p Payload) Message {
	return Message{Signal: NewSignal(p.DataType(), param), Payload: p}
}

// Matches ignores the payload.
func (m Message) Matches(other Message) bool {
	return m.Signal.Matches(other.Signal)
}

// Serialize encodes m as one link frame. The transport stamps the sequence number.
func (m Message) Serialize() ([]byte, error) {
	return Encode(m)
}
