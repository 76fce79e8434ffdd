package station

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/skyctl/internal/config"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/testutil/testlog"
	"github.com/danmuck/skyctl/internal/uav"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listener unavailable: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestServeConnectsSimulatedVehicleOnBoot(t *testing.T) {
	testlog.Start(t)
	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = freeAddr(t)
	cfg.Link.Sim.NonStaticReports = 1
	svc := NewService(cfg)
	events, cancelSub := svc.Manager().Subscribe(16)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(3 * time.Second)
	for connected := false; !connected; {
		select {
		case ev := <-events:
			connected = ev.Type == uav.EventConnected
		case <-deadline:
			t.Fatalf("vehicle never connected")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestServeFailsWhenLinkUnreachable(t *testing.T) {
	testlog.Start(t)
	cfg := config.DefaultConfig()
	cfg.Link = link.Config{
		Kind:         link.KindTCP,
		Addr:         freeAddr(t),
		DialAttempts: 1,
	}
	err := NewService(cfg).Serve(context.Background())
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation: %v", err)
	}
}
