package uav

import (
	"testing"

	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/testutil/testlog"
)

func TestManagerStatusFollowsEvents(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	if got := m.Snapshot().Status; got != StatusDisconnected {
		t.Fatalf("unexpected initial status %q", got)
	}
	m.MarkConnecting()
	m.NotifyUavEvent(NewEvent(EventCalibrationNonStatic))
	if got := m.Snapshot().Status; got != StatusConnecting {
		t.Fatalf("advisory event must not change status, got %q", got)
	}
	m.NotifyUavEvent(NewEvent(EventConnected))
	snap := m.Snapshot()
	if snap.Status != StatusConnected {
		t.Fatalf("unexpected status %q", snap.Status)
	}
	if snap.NonStaticCount != 1 || len(snap.History) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.LastEvent == nil || snap.LastEvent.Type != EventConnected {
		t.Fatalf("unexpected last event: %+v", snap.LastEvent)
	}
	m.NotifyUavEvent(NewErrorEvent("boom"))
	if got := m.Snapshot().Status; got != StatusFailed {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestManagerHistoryBounded(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	for i := 0; i < DefaultHistoryLimit+10; i++ {
		m.NotifyUavEvent(NewEvent(EventCalibrationNonStatic))
	}
	if got := len(m.Snapshot().History); got != DefaultHistoryLimit {
		t.Fatalf("history not bounded: %d", got)
	}
}

func TestManagerCalibrationOwnership(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	if _, ok := m.CalibrationSettings(); ok {
		t.Fatalf("expected no calibration")
	}
	cal := protocol.CalibrationSettings{BoardType: protocol.BoardTypeRev1}.Seal()
	m.SetCalibrationSettings(cal)
	got, ok := m.CalibrationSettings()
	if !ok || got != cal {
		t.Fatalf("unexpected calibration: %+v ok=%v", got, ok)
	}
	snap := m.Snapshot()
	snap.Calibration.BoardType = 7
	if again, _ := m.CalibrationSettings(); again.BoardType != protocol.BoardTypeRev1 {
		t.Fatalf("snapshot must not alias manager state")
	}
}

func TestManagerSubscribe(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	ch, cancel := m.Subscribe(2)
	m.NotifyUavEvent(NewEvent(EventConnected))
	ev := <-ch
	if ev.Type != EventConnected || ev.At.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	m.NotifyUavEvent(NewEvent(EventDisconnected))
}

func TestManagerControlDataFreq(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	if m.ControlDataSendingFreq() != DefaultControlDataSendingFreq {
		t.Fatalf("unexpected default frequency")
	}
	m.SetControlDataSendingFreq(-1)
	m.SetControlDataSendingFreq(50)
	if m.ControlDataSendingFreq() != 50 {
		t.Fatalf("frequency not updated")
	}
}
