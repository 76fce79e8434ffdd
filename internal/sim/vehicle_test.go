package sim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/danmuck/skyctl/internal/testutil/testlog"
)

func startVehicle(t *testing.T, opts Options) (*Vehicle, net.Conn, <-chan error) {
	t.Helper()
	ground, device := net.Pipe()
	v := NewVehicle(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Serve(ctx, device) }()
	t.Cleanup(func() {
		cancel()
		_ = ground.Close()
	})
	return v, ground, done
}

func send(t *testing.T, conn net.Conn, sig protocol.SignalData) {
	t.Helper()
	b, err := sig.Message().Serialize()
	if err != nil {
		t.Fatalf("serialize %s: %v", sig, err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(b); err != nil {
		t.Fatalf("write %s: %v", sig, err)
	}
}

func recv(t *testing.T, conn net.Conn) protocol.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	fr, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	ev, err := protocol.Decode(fr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func expectSignal(t *testing.T, ev protocol.Event, want protocol.SignalData) {
	t.Helper()
	if !protocol.MatchSignal(ev, want) {
		t.Fatalf("got %s want %s", ev.Signal(), want)
	}
}

func expectCalibration(t *testing.T, ev protocol.Event, valid bool) {
	t.Helper()
	pe, ok := ev.(protocol.PayloadEvent)
	if !ok {
		t.Fatalf("expected payload event, got %s", ev.Signal())
	}
	cal, ok := pe.Payload.(protocol.CalibrationSettings)
	if !ok {
		t.Fatalf("unexpected payload type %T", pe.Payload)
	}
	if cal.IsValid() != valid {
		t.Fatalf("calibration valid=%v want %v", cal.IsValid(), valid)
	}
}

func TestVehicleHandshake(t *testing.T) {
	testlog.Start(t)
	v, conn, _ := startVehicle(t, Options{NonStaticReports: 2, InvalidCalibrations: 1})

	send(t, conn, protocol.NewSignal(protocol.CmdStart, protocol.ParamStart))
	expectSignal(t, recv(t, conn), protocol.NewSignal(protocol.CmdStart, protocol.ParamAck))
	nonStatic := protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamNonStatic)
	expectSignal(t, recv(t, conn), nonStatic)
	expectSignal(t, recv(t, conn), nonStatic)
	expectSignal(t, recv(t, conn), protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamReady))
	expectCalibration(t, recv(t, conn), false)

	send(t, conn, protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamDataInvalid))
	expectCalibration(t, recv(t, conn), true)

	send(t, conn, protocol.NewSignal(protocol.CmdCalibrationSettings, protocol.ParamAck))
	send(t, conn, protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamStart))
	expectSignal(t, recv(t, conn), protocol.NewSignal(protocol.CmdAppLoop, protocol.ParamAck))

	if !v.AppLoopStarted() {
		t.Fatalf("expected app loop started")
	}
	if got := len(v.Received()); got != 4 {
		t.Fatalf("received=%d want 4", got)
	}
}

func TestVehicleSilentStart(t *testing.T) {
	testlog.Start(t)
	v, conn, _ := startVehicle(t, Options{SilentStart: true})

	send(t, conn, protocol.NewSignal(protocol.CmdStart, protocol.ParamStart))
	send(t, conn, protocol.NewSignal(protocol.CmdPing, protocol.ParamNone))
	expectSignal(t, recv(t, conn), protocol.NewSignal(protocol.CmdPing, protocol.ParamAck))
	if v.StartRequests() != 1 {
		t.Fatalf("start requests=%d", v.StartRequests())
	}
}

func TestVehicleDisconnectEndsServe(t *testing.T) {
	testlog.Start(t)
	_, conn, done := startVehicle(t, Options{})

	send(t, conn, protocol.NewSignal(protocol.CmdDisconnect, protocol.ParamNone))
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after DISCONNECT")
	}
}

func TestDefaultCalibrationIsValid(t *testing.T) {
	testlog.Start(t)
	if !DefaultCalibration().IsValid() {
		t.Fatalf("default calibration must be valid")
	}
}
