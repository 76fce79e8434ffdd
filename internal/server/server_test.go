package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/skyctl/internal/action"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/sim"
	"github.com/danmuck/skyctl/internal/testutil/testlog"
	"github.com/danmuck/skyctl/internal/uav"
)

type busyConnector struct{}

func (busyConnector) Connect(action.ConnectConfig) (*action.ConnectAction, error) {
	return nil, link.ErrActionInProgress
}

func (busyConnector) Busy() bool { return true }

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	testlog.Start(t)
	s := New(Config{}, uav.NewManager(), nil)
	rr := serve(t, s, http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	decode(t, rr, &body)
	if body["status"] != "ok" || body["service"] != ServiceName {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestStatusReportsCalibrationAndHistory(t *testing.T) {
	testlog.Start(t)
	mgr := uav.NewManager()
	mgr.SetCalibrationSettings(sim.DefaultCalibration())
	mgr.NotifyUavEvent(uav.NewEvent(uav.EventCalibrationNonStatic))
	mgr.NotifyUavEvent(uav.NewEvent(uav.EventConnected))
	s := New(Config{}, mgr, nil)

	rr := serve(t, s, http.MethodGet, "/uav")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body statusView
	decode(t, rr, &body)
	if body.Status != string(uav.StatusConnected) {
		t.Fatalf("status got=%q", body.Status)
	}
	if body.LastEvent == nil || body.LastEvent.Type != uav.EventConnected.String() {
		t.Fatalf("unexpected last event: %+v", body.LastEvent)
	}
	if body.Calibration == nil || body.Calibration.BoardType != protocol.BoardTypeRev2 {
		t.Fatalf("unexpected calibration: %+v", body.Calibration)
	}
	if body.NonStaticCount != 1 || len(body.History) != 2 {
		t.Fatalf("unexpected counters: %+v", body)
	}
	if body.ControlDataFreq != uav.DefaultControlDataSendingFreq {
		t.Fatalf("freq got=%v", body.ControlDataFreq)
	}
}

func TestConnectWithoutLink(t *testing.T) {
	testlog.Start(t)
	s := New(Config{}, uav.NewManager(), nil)
	if rr := serve(t, s, http.MethodPost, "/uav/connect"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestConnectConflictWhileBusy(t *testing.T) {
	testlog.Start(t)
	s := New(Config{}, uav.NewManager(), busyConnector{})
	rr := serve(t, s, http.MethodPost, "/uav/connect")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body statusView
	decode(t, serve(t, s, http.MethodGet, "/uav"), &body)
	if !body.Busy {
		t.Fatalf("expected busy status")
	}
}

func TestConnectDrivesSimulatedVehicle(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := uav.NewManager()
	events, unsubscribe := mgr.Subscribe(8)
	defer unsubscribe()
	handler := link.NewCommHandler(link.OpenSim(ctx, sim.Options{}), mgr, 0)
	go func() { _ = handler.Run(ctx) }()

	s := New(Config{Handshake: action.ConnectConfig{Timeout: time.Second}}, mgr, handler)
	rr := serve(t, s, http.MethodPost, "/uav/connect")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	decode(t, rr, &body)
	if body["attempt"] == "" {
		t.Fatalf("missing attempt id: %#v", body)
	}

	deadline := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			done = ev.Type == uav.EventConnected
		case <-deadline:
			t.Fatalf("vehicle never connected")
		}
	}
	if mgr.Snapshot().Status != uav.StatusConnected {
		t.Fatalf("status got=%s", mgr.Snapshot().Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s := New(Config{}, uav.NewManager(), nil)
	_ = serve(t, s, http.MethodGet, "/health")
	rr := serve(t, s, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "skyctl_http_requests_total") {
		t.Fatalf("metrics output missing http counter")
	}
}
