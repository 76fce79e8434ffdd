package link

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/danmuck/skyctl/internal/sim"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Dial opens the configured transport, retrying with backoff until
// DialAttempts is exhausted (zero retries forever) or ctx is done.
func Dial(ctx context.Context, cfg Config) (*Link, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var attempt int
	for {
		attempt++
		l, err := open(ctx, cfg)
		if err == nil {
			log.Info().Str("link", l.Name()).Int("attempt", attempt).Msg("link: opened")
			return l, nil
		}
		log.Warn().Err(err).Str("kind", string(cfg.Kind)).Int("attempt", attempt).Msg("link: dial failed")
		if cfg.DialAttempts > 0 && attempt >= cfg.DialAttempts {
			return nil, fmt.Errorf("link: dial %s after %d attempts: %w", cfg.Kind, attempt, err)
		}
		if err := sleepBackoff(ctx, cfg.Backoff, attempt, rng); err != nil {
			return nil, err
		}
	}
}

func open(ctx context.Context, cfg Config) (*Link, error) {
	switch cfg.Kind {
	case KindSerial:
		port, err := OpenSerial(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, err
		}
		return New("serial:"+cfg.Port, port, cfg.Limits), nil
	case KindTCP:
		dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
		if err != nil {
			return nil, err
		}
		return New("tcp:"+cfg.Addr, conn, cfg.Limits), nil
	case KindSim:
		return OpenSim(ctx, cfg.Sim), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// OpenSerial opens a radio or USB serial port in 8N1 mode.
func OpenSerial(port string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", port, err)
	}
	return p, nil
}

// SerialPorts lists the serial ports visible to the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// OpenSim connects to an in-process simulated vehicle over a pipe. The
// vehicle stops when the returned link is closed.
func OpenSim(ctx context.Context, opts sim.Options) *Link {
	ground, device := net.Pipe()
	vehicle := sim.NewVehicle(opts)
	go func() {
		if err := vehicle.Serve(context.WithoutCancel(ctx), device); err != nil {
			log.Warn().Err(err).Msg("link: simulated vehicle stopped")
		}
		_ = device.Close()
	}()
	return New("sim", ground, DefaultConfig().Limits)
}

func sleepBackoff(ctx context.Context, cfg BackoffConfig, attempt int, rng *rand.Rand) error {
	delay := NextBackoffDelay(cfg, attempt, rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
