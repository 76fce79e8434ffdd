// Package sim answers the connection handshake from the vehicle side. It backs
// the "sim" link kind and end-to-end tests.
package sim

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// Options shapes how the simulated vehicle behaves during the handshake.
type Options struct {
	// NonStaticReports is how many CALIBRATION_SETTINGS/NON_STATIC reports
	// precede READY.
	NonStaticReports int
	// InvalidCalibrations is how many corrupted calibration payloads are sent
	// before a valid one.
	InvalidCalibrations int
	// SilentStart never acknowledges START.
	SilentStart bool
	// Calibration replaces DefaultCalibration when non-zero.
	Calibration protocol.CalibrationSettings
}

// DefaultCalibration is a sealed, valid calibration record.
func DefaultCalibration() protocol.CalibrationSettings {
	return protocol.CalibrationSettings{
		GyroOffset:         [3]float32{0.012, -0.004, 0.007},
		AccelCalib:         [3]float32{1.002, 0.998, 1.001},
		MagnetSoft:         [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
		MagnetHard:         [3]float32{12.5, -3.25, 40},
		AltimeterSetting:   1013.25,
		TemperatureSetting: 21.5,
		BoardType:          protocol.BoardTypeRev2,
	}.Seal()
}

// Vehicle is a device-side peer. One Vehicle serves one link at a time.
type Vehicle struct {
	opts Options

	mu             sync.Mutex
	invalidLeft    int
	seq            uint32
	received       []protocol.SignalData
	startRequests  int
	appLoopStarted bool
}

func NewVehicle(opts Options) *Vehicle {
	if opts.Calibration == (protocol.CalibrationSettings{}) {
		opts.Calibration = DefaultCalibration()
	}
	return &Vehicle{opts: opts, invalidLeft: opts.InvalidCalibrations}
}

// Serve reads frames from rw and answers them until ctx is done, the peer
// closes the link, or a DISCONNECT arrives. A clean close returns nil.
func (v *Vehicle) Serve(ctx context.Context, rw io.ReadWriter) error {
	if closer, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = closer.Close() })
		defer stop()
	}

	for {
		fr, err := frame.ReadFrame(rw, frame.DefaultLimits())
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		ev, err := protocol.Decode(fr)
		if err != nil {
			log.Warn().Err(err).Msg("sim: dropping undecodable frame")
			continue
		}
		sig := ev.Signal()
		v.record(sig)
		log.Debug().Str("signal", sig.String()).Uint32("seq", fr.Header.Seq).Msg("sim: received")

		if sig.Command == protocol.CmdDisconnect {
			return nil
		}
		if err := v.respond(rw, sig); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (v *Vehicle) respond(w io.Writer, sig protocol.SignalData) error {
	switch {
	case sig.Matches(protocol.NewSignal(protocol.CmdStart, protocol.ParamStart)):
		v.mu.Lock()
		v.startRequests++
		v.invalidLeft = v.opts.InvalidCalibrations
		v.mu.Unlock()
		if v.opts.SilentStart {
			return nil
		}
		if err := v.write(w, protocol.NewSignal(protocol.CmdStart, protocol.ParamAck).Message()); err != nil {
			return err
		}
		for i := 0; i < v.opts.NonStaticReports; i++ {
			msg := protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamNonStatic).Message()
			if err := v.write(w, msg); err != nil {
				return err
			}
		}
		if err := v.write(w, protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamReady).Message()); err != nil {
			return err
		}
		return v.sendCalibration(w)

	case sig.Matches(protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamDataInvalid)):
		return v.sendCalibration(w)

	case sig.Matches(protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamStart)):
		v.mu.Lock()
		v.appLoopStarted = true
		v.mu.Unlock()
		return v.write(w, protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamAck).Message())

	case sig.Matches(protocol.NewSignal(protocol.CmdPing, protocol.ParamNone)):
		return v.write(w, protocol.NewSignal(protocol.CmdPing, protocol.ParamAck).Message())
	}
	return nil
}

func (v *Vehicle) sendCalibration(w io.Writer) error {
	cal := v.opts.Calibration
	v.mu.Lock()
	if v.invalidLeft > 0 {
		v.invalidLeft--
		cal.CRC = ^cal.CRC
	}
	v.mu.Unlock()
	return v.write(w, protocol.NewPayloadMessage(protocol.ParamNone, cal))
}

func (v *Vehicle) write(w io.Writer, msg protocol.Message) error {
	b, err := msg.Serialize()
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.mu.Unlock()
	if err := frame.StampSeq(b, seq); err != nil {
		return err
	}
	log.Debug().Str("signal", msg.Signal.String()).Uint32("seq", seq).Msg("sim: sending")
	_, err = w.Write(b)
	return err
}

func (v *Vehicle) record(sig protocol.SignalData) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.received = append(v.received, sig)
}

// Received lists every signal the vehicle has read, in order.
func (v *Vehicle) Received() []protocol.SignalData {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]protocol.SignalData(nil), v.received...)
}

// StartRequests counts START/START frames seen.
func (v *Vehicle) StartRequests() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.startRequests
}

// AppLoopStarted reports whether APP_LOOP/START was received.
func (v *Vehicle) AppLoopStarted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.appLoopStarted
}
