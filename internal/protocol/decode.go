package protocol

import (
	"fmt"

	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/danmuck/skyctl/internal/protocol/schema"
	"github.com/danmuck/skyctl/internal/protocol/tlv"
)

// Decode turns one frame into an inbound event.
func Decode(f frame.Frame) (Event, error) {
	kind := f.Header.Kind
	if kind != frame.KindSignal && kind != frame.KindPayload {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameKind, kind)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(kind, fields); err != nil {
		return nil, err
	}
	sig, err := signalFromFields(fields)
	if err != nil {
		return nil, err
	}
	if kind == frame.KindSignal {
		return SignalEvent{Data: sig}, nil
	}

	data, _ := tlv.GetField(fields, schema.FieldData)
	switch sig.Command {
	case CmdCalibrationSettingsData:
		cal, err := DecodeCalibration(data.Value)
		if err != nil {
			return nil, fmt.Errorf("decode calibration: %w", err)
		}
		return PayloadEvent{Data: sig, Payload: cal}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, sig.Command)
	}
}

func signalFromFields(fields []tlv.Field) (SignalData, error) {
	cmdField, _ := tlv.GetField(fields, schema.FieldCommand)
	paramField, _ := tlv.GetField(fields, schema.FieldParameter)
	cmd, err := tlv.U16FromBytes(cmdField.Value)
	if err != nil {
		return SignalData{}, err
	}
	param, err := tlv.U16FromBytes(paramField.Value)
	if err != nil {
		return SignalData{}, err
	}
	return NewSignal(Command(cmd), Parameter(param)), nil
}
