package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders DefaultConfig as a TOML document.
func Template() (string, error) {
	def := DefaultConfig()
	raw := fileConfig{
		Link: linkSection{
			Kind:         string(def.Link.Kind),
			Port:         def.Link.Port,
			Baud:         def.Link.Baud,
			Addr:         def.Link.Addr,
			DialAttempts: def.Link.DialAttempts,
		},
		Handshake: handshakeSection{Timeout: def.Handshake.Timeout.String()},
		HTTP: httpSection{
			Addr:        def.HTTP.Addr,
			CorsOrigins: def.HTTP.CorsOrigins,
		},
		Log: logSection{Level: def.LogLevel},
		UAV: uavSection{ControlDataFreq: def.ControlDataFreq},
		Sim: simSection{
			NonStaticReports:    def.Link.Sim.NonStaticReports,
			InvalidCalibrations: def.Link.Sim.InvalidCalibrations,
			SilentStart:         def.Link.Sim.SilentStart,
		},
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
