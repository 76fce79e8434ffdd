package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/skyctl/internal/action"
	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/uav"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// connectingMarker is implemented by monitors that track a pending attempt.
type connectingMarker interface {
	MarkConnecting()
}

// terminator is implemented by actions whose attempt can end without IsDone.
type terminator interface {
	Terminated() bool
}

// CommHandler owns a link and the current action. A reader goroutine decodes
// frames into events and a dispatcher goroutine feeds them, one at a time, to
// the current action.
type CommHandler struct {
	link    *Link
	monitor action.Monitor
	events  chan protocol.Event

	mu      sync.Mutex
	current action.Action
}

func NewCommHandler(l *Link, monitor action.Monitor, buffer int) *CommHandler {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &CommHandler{
		link:    l,
		monitor: monitor,
		events:  make(chan protocol.Event, buffer),
	}
}

// Send implements action.Sender.
func (h *CommHandler) Send(b []byte) error {
	return h.link.Send(b)
}

// StartAction makes a the current action and starts it. It fails with
// ErrActionInProgress while the current action has not finished.
func (h *CommHandler) StartAction(a action.Action) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busyLocked() {
		return ErrActionInProgress
	}
	if m, ok := h.monitor.(connectingMarker); ok {
		m.MarkConnecting()
	}
	h.current = a
	if err := a.Start(); err != nil {
		return err
	}
	log.Info().Str("link", h.link.Name()).Str("action", string(a.Type())).Msg("link: action started")
	return nil
}

// Connect starts a fresh connection handshake on this link.
func (h *CommHandler) Connect(cfg action.ConnectConfig) (*action.ConnectAction, error) {
	a, err := action.NewConnectAction(h, h.monitor, cfg)
	if err != nil {
		return nil, err
	}
	if err := h.StartAction(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Current returns the current action, or nil.
func (h *CommHandler) Current() action.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Busy reports whether the current action is still in flight.
func (h *CommHandler) Busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.busyLocked()
}

func (h *CommHandler) busyLocked() bool {
	if h.current == nil {
		return false
	}
	if t, ok := h.current.(terminator); ok {
		return !t.Terminated()
	}
	return !h.current.IsDone()
}

// Run reads and dispatches until ctx is done or the link closes. The link is
// closed on return. A link closed by the peer is reported to the monitor as
// EventDisconnected and Run returns nil.
func (h *CommHandler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = h.link.Close() })
	defer stop()

	g.Go(func() error {
		defer close(h.events)
		return h.readLoop(gctx)
	})
	g.Go(func() error {
		h.dispatchLoop()
		return nil
	})
	err := g.Wait()
	_ = h.link.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (h *CommHandler) readLoop(ctx context.Context) error {
	for {
		fr, err := h.link.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Warn().Str("link", h.link.Name()).Msg("link: closed by peer")
				h.monitor.NotifyUavEvent(uav.NewEvent(uav.EventDisconnected))
				return nil
			}
			return fmt.Errorf("link: read %s: %w", h.link.Name(), err)
		}
		ev, err := protocol.Decode(fr)
		if err != nil {
			log.Warn().Err(err).Uint32("seq", fr.Header.Seq).Msg("link: dropping undecodable frame")
			continue
		}
		log.Debug().Str("signal", ev.Signal().String()).Uint32("seq", fr.Header.Seq).Msg("link: event received")
		select {
		case h.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *CommHandler) dispatchLoop() {
	for ev := range h.events {
		cur := h.Current()
		if cur == nil {
			log.Debug().Str("signal", ev.Signal().String()).Msg("link: no action, event dropped")
			continue
		}
		if err := cur.HandleEvent(ev); err != nil {
			var perr *action.ProtocolError
			if errors.As(err, &perr) {
				log.Error().Err(err).Str("state", perr.State).Msg("link: action rejected event")
				continue
			}
			log.Error().Err(err).Msg("link: action failed")
		}
	}
}
