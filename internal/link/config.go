package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/danmuck/skyctl/internal/sim"
)

// Kind selects the physical transport.
type Kind string

const (
	KindSerial Kind = "serial"
	KindTCP    Kind = "tcp"
	KindSim    Kind = "sim"
)

const (
	DefaultBaud        = 57600
	DefaultAddr        = "127.0.0.1:5760"
	DefaultEventBuffer = 64
)

var (
	ErrUnknownKind      = errors.New("link: unknown kind")
	ErrPortRequired     = errors.New("link: serial port required")
	ErrAddrRequired     = errors.New("link: tcp address required")
	ErrInvalidBaud      = errors.New("link: invalid baud rate")
	ErrLinkClosed       = errors.New("link: closed")
	ErrActionInProgress = errors.New("link: action in progress")
)

// Config describes how to reach the vehicle and how to frame traffic.
type Config struct {
	Kind           Kind
	Port           string
	Baud           int
	Addr           string
	DialAttempts   int
	ConnectTimeout time.Duration
	Backoff        BackoffConfig
	Limits         frame.Limits
	EventBuffer    int
	Sim            sim.Options
}

func DefaultConfig() Config {
	return Config{
		Kind:           KindSim,
		Baud:           DefaultBaud,
		Addr:           DefaultAddr,
		DialAttempts:   5,
		ConnectTimeout: 5 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits:      frame.DefaultLimits(),
		EventBuffer: DefaultEventBuffer,
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(string(c.Kind)) == "" {
		c.Kind = def.Kind
	}
	if c.Baud == 0 {
		c.Baud = def.Baud
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindSerial:
		if strings.TrimSpace(c.Port) == "" {
			return ErrPortRequired
		}
		if c.Baud <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidBaud, c.Baud)
		}
	case KindTCP:
		if strings.TrimSpace(c.Addr) == "" {
			return ErrAddrRequired
		}
	case KindSim:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}
