package protocol

import (
	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/danmuck/skyctl/internal/protocol/schema"
	"github.com/danmuck/skyctl/internal/protocol/tlv"
)

// Encode writes m as a single frame with sequence number zero.
func Encode(m Message) ([]byte, error) {
	kind := frame.KindSignal
	fields := []tlv.Field{
		tlv.U16(schema.FieldCommand, uint16(m.Signal.Command)),
		tlv.U16(schema.FieldParameter, uint16(m.Signal.Parameter)),
	}
	if m.Payload != nil {
		kind = frame.KindPayload
		fields = append(fields, tlv.Bytes(schema.FieldData, m.Payload.Bytes()))
	}
	if err := schema.Validate(kind, fields); err != nil {
		return nil, err
	}
	payload, err := tlv.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	return frame.Marshal(frame.Frame{
		Header:  frame.Header{Kind: kind},
		Payload: payload,
	}, frame.DefaultLimits())
}
