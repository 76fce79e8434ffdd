// Package station wires the vehicle link, the session manager and the HTTP
// API into one ground-station process.
package station

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/danmuck/skyctl/internal/config"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/server"
	"github.com/danmuck/skyctl/internal/uav"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	cfg     config.Config
	manager *uav.Manager
}

func NewService(cfg config.Config) *Service {
	mgr := uav.NewManager()
	mgr.SetControlDataSendingFreq(cfg.ControlDataFreq)
	return &Service{cfg: cfg, manager: mgr}
}

func (s *Service) Manager() *uav.Manager {
	return s.manager
}

// Run blocks until SIGINT/SIGTERM or a fatal link or HTTP error.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve opens the link, starts the handshake and serves HTTP until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	l, err := link.Dial(ctx, s.cfg.Link)
	if err != nil {
		return err
	}
	handler := link.NewCommHandler(l, s.manager, s.cfg.Link.EventBuffer)
	api := server.New(server.Config{
		Addr:        s.cfg.HTTP.Addr,
		CorsOrigins: s.cfg.HTTP.CorsOrigins,
		Handshake:   s.cfg.Handshake,
	}, s.manager, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := handler.Run(gctx)
		if err == nil && gctx.Err() == nil {
			return errLinkLost
		}
		return err
	})
	g.Go(func() error {
		return api.Run(gctx)
	})
	g.Go(func() error {
		s.watchEvents(gctx)
		return nil
	})

	if _, err := handler.Connect(s.cfg.Handshake); err != nil {
		log.Error().Err(err).Msg("station: initial connect failed")
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errLinkLost = errors.New("station: vehicle link lost")

func (s *Service) watchEvents(ctx context.Context) {
	events, cancel := s.manager.Subscribe(16)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if !ev.Terminal() {
				continue
			}
			switch ev.Type {
			case uav.EventConnected:
				log.Info().Float64("control_hz", s.manager.ControlDataSendingFreq()).Msg("station: vehicle connected")
			case uav.EventError:
				log.Error().Str("reason", ev.Message).Msg("station: handshake failed, POST /uav/connect to retry")
			}
		}
	}
}
