package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefinedKeysOnly(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[link]
kind = "TCP"
addr = "192.168.4.1:5760"

[handshake]
timeout = "750ms"

[http]
cors_origins = [" http://gcs.local ", ""]

[sim]
invalid_calibrations = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Link.Kind != link.KindTCP || cfg.Link.Addr != "192.168.4.1:5760" {
		t.Fatalf("unexpected link: %+v", cfg.Link)
	}
	if cfg.Link.Baud != def.Link.Baud || cfg.Link.DialAttempts != def.Link.DialAttempts {
		t.Fatalf("undefined link keys must keep defaults: %+v", cfg.Link)
	}
	if cfg.Handshake.Timeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", cfg.Handshake.Timeout)
	}
	if diff := cmp.Diff([]string{"http://gcs.local"}, cfg.HTTP.CorsOrigins); diff != "" {
		t.Fatalf("cors origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Fatalf("unexpected http addr: %q", cfg.HTTP.Addr)
	}
	if cfg.Link.Sim.InvalidCalibrations != 2 {
		t.Fatalf("unexpected sim options: %+v", cfg.Link.Sim)
	}
}

func TestLoadTimeoutMSWins(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[handshake]
timeout = "10s"
timeout_ms = 1500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Handshake.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", cfg.Handshake.Timeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		body string
		want error
	}{
		{name: "zero timeout", body: "[handshake]\ntimeout_ms = 0\n", want: ErrInvalidTimeout},
		{name: "bad level", body: "[log]\nlevel = \"loud\"\n", want: ErrInvalidLevel},
		{name: "serial without port", body: "[link]\nkind = \"serial\"\n", want: link.ErrPortRequired},
		{name: "unknown kind", body: "[link]\nkind = \"smoke\"\n", want: link.ErrUnknownKind},
		{name: "bad freq", body: "[uav]\ncontrol_data_freq = -1.0\n", want: ErrInvalidFreq},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestLoadRejectsUnknownKeysAndBadDuration(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(writeConfig(t, "[link]\nspeed = 9600\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := Load(writeConfig(t, "[handshake]\ntimeout = \"soon\"\n")); err == nil {
		t.Fatalf("expected duration parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestTemplateRoundTripsToDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "skyctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := DefaultConfig()
	if cfg.Link.Kind != def.Link.Kind || cfg.Link.Addr != def.Link.Addr || cfg.Link.Baud != def.Link.Baud {
		t.Fatalf("link mismatch: %+v", cfg.Link)
	}
	if cfg.Handshake.Timeout != def.Handshake.Timeout {
		t.Fatalf("timeout mismatch: %v", cfg.Handshake.Timeout)
	}
	if cfg.HTTP.Addr != def.HTTP.Addr || cfg.LogLevel != def.LogLevel || cfg.ControlDataFreq != def.ControlDataFreq {
		t.Fatalf("config mismatch: %+v", cfg)
	}
	if diff := cmp.Diff(def.HTTP.CorsOrigins, cfg.HTTP.CorsOrigins); diff != "" {
		t.Fatalf("cors mismatch (-want +got):\n%s", diff)
	}
}
