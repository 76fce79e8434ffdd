package schema

import (
	"fmt"

	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/danmuck/skyctl/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Field IDs carried inside a frame payload.
const (
	FieldCommand   uint8 = 1
	FieldParameter uint8 = 2
	FieldData      uint8 = 3
)

type Requirement struct {
	ID   uint8
	Type uint8
}

type ValidationError struct {
	Kind    uint16
	FieldID uint8
	Reason  string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: kind=%d: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("schema: kind=%d field=%d: %s", e.Kind, e.FieldID, e.Reason)
}

var requirements = map[uint16][]Requirement{
	frame.KindSignal: {
		{FieldCommand, tlv.TypeU16},
		{FieldParameter, tlv.TypeU16},
	},
	frame.KindPayload: {
		{FieldCommand, tlv.TypeU16},
		{FieldParameter, tlv.TypeU16},
		{FieldData, tlv.TypeBytes},
	},
}

// Validate enforces required fields and their types for a frame kind.
// Unknown fields are ignored.
func Validate(kind uint16, fields []tlv.Field) error {
	reqs, ok := requirements[kind]
	if !ok {
		log.Warn().Uint16("kind", kind).Msg("schema: unknown frame kind")
		return ValidationError{Kind: kind, Reason: "unknown frame kind"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Warn().Uint16("kind", kind).Uint8("field", req.ID).Msg("schema: missing field")
			return ValidationError{Kind: kind, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Warn().
				Uint16("kind", kind).
				Uint8("field", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema: type mismatch")
			return ValidationError{Kind: kind, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
