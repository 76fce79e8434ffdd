package protocol

import "errors"

var (
	ErrInvalidLength    = errors.New("protocol: invalid length")
	ErrUnknownFrameKind = errors.New("protocol: unknown frame kind")
	ErrUnknownPayload   = errors.New("protocol: unknown payload type")
)
