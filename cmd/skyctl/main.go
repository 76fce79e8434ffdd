package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/danmuck/skyctl/internal/config"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/logging"
	"github.com/danmuck/skyctl/internal/observability"
	"github.com/danmuck/skyctl/internal/station"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "cmd/skyctl/config.toml", "path to skyctl config")
	listPorts := flag.Bool("list-ports", false, "print serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := link.SerialPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "skyctl: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	observability.InitLogger("skyctl")
	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skyctl: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv(logging.EnvLogLevel) == "" {
		logging.SetLevel(cfg.LogLevel)
	}
	log.Info().
		Str("link", string(cfg.Link.Kind)).
		Str("http", cfg.HTTP.Addr).
		Dur("handshake_timeout", cfg.Handshake.Timeout).
		Msg("skyctl: starting")

	if err := station.NewService(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "skyctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when path does not exist.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("skyctl: config not found, using defaults")
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
