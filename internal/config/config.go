// Package config loads skyctl's TOML configuration onto defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/skyctl/internal/action"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/logging"
	"github.com/danmuck/skyctl/internal/uav"
)

const DefaultHTTPAddr = "127.0.0.1:8080"

var (
	ErrInvalidTimeout = errors.New("config: handshake timeout must be positive")
	ErrInvalidLevel   = errors.New("config: unknown log level")
	ErrMissingHTTP    = errors.New("config: http addr required")
	ErrInvalidFreq    = errors.New("config: control data frequency must be positive")
)

// Config is the resolved process configuration.
type Config struct {
	Link      link.Config
	Handshake action.ConnectConfig
	HTTP      HTTPConfig
	LogLevel  string

	// ControlDataFreq is the control stream rate in Hz once connected.
	ControlDataFreq float64
}

type HTTPConfig struct {
	Addr        string
	CorsOrigins []string
}

func DefaultConfig() Config {
	return Config{
		Link:      link.DefaultConfig(),
		Handshake: action.ConnectConfig{Timeout: action.ConnectionTimeout},
		HTTP: HTTPConfig{
			Addr:        DefaultHTTPAddr,
			CorsOrigins: []string{"http://localhost:3000"},
		},
		LogLevel:        "info",
		ControlDataFreq: uav.DefaultControlDataSendingFreq,
	}
}

type fileConfig struct {
	Link      linkSection      `toml:"link"`
	Handshake handshakeSection `toml:"handshake"`
	HTTP      httpSection      `toml:"http"`
	Log       logSection       `toml:"log"`
	UAV       uavSection       `toml:"uav"`
	Sim       simSection       `toml:"sim"`
}

type linkSection struct {
	Kind         string `toml:"kind"`
	Port         string `toml:"port"`
	Baud         int    `toml:"baud"`
	Addr         string `toml:"addr"`
	DialAttempts int    `toml:"dial_attempts"`
}

type handshakeSection struct {
	Timeout   string `toml:"timeout"`
	TimeoutMS int64  `toml:"timeout_ms,omitempty"`
}

type httpSection struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

type logSection struct {
	Level string `toml:"level"`
}

type uavSection struct {
	ControlDataFreq float64 `toml:"control_data_freq"`
}

type simSection struct {
	NonStaticReports    int  `toml:"non_static_reports"`
	InvalidCalibrations int  `toml:"invalid_calibrations"`
	SilentStart         bool `toml:"silent_start"`
}

// Load decodes path and overlays only the keys it defines onto DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("link", "kind") {
		cfg.Link.Kind = link.Kind(strings.ToLower(strings.TrimSpace(raw.Link.Kind)))
	}
	if meta.IsDefined("link", "port") {
		cfg.Link.Port = strings.TrimSpace(raw.Link.Port)
	}
	if meta.IsDefined("link", "baud") {
		cfg.Link.Baud = raw.Link.Baud
	}
	if meta.IsDefined("link", "addr") {
		cfg.Link.Addr = strings.TrimSpace(raw.Link.Addr)
	}
	if meta.IsDefined("link", "dial_attempts") {
		cfg.Link.DialAttempts = raw.Link.DialAttempts
	}

	if meta.IsDefined("handshake", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Handshake.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse handshake.timeout: %w", err)
		}
		cfg.Handshake.Timeout = d
	}
	if meta.IsDefined("handshake", "timeout_ms") {
		cfg.Handshake.Timeout = time.Duration(raw.Handshake.TimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = normalizeList(raw.HTTP.CorsOrigins)
	}

	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("uav", "control_data_freq") {
		cfg.ControlDataFreq = raw.UAV.ControlDataFreq
	}

	if meta.IsDefined("sim", "non_static_reports") {
		cfg.Link.Sim.NonStaticReports = raw.Sim.NonStaticReports
	}
	if meta.IsDefined("sim", "invalid_calibrations") {
		cfg.Link.Sim.InvalidCalibrations = raw.Sim.InvalidCalibrations
	}
	if meta.IsDefined("sim", "silent_start") {
		cfg.Link.Sim.SilentStart = raw.Sim.SilentStart
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if c.Handshake.Timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.Handshake.Timeout)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.LogLevel)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return ErrMissingHTTP
	}
	if c.ControlDataFreq <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFreq, c.ControlDataFreq)
	}
	return nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
