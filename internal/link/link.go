// Package link carries protocol frames between the ground station and the
// vehicle and dispatches decoded events to the active action.
package link

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/danmuck/skyctl/internal/observability"
	"github.com/danmuck/skyctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// Link is a framed byte stream. Writes are serialized and stamped with a
// monotonically increasing sequence number; reads belong to one goroutine.
type Link struct {
	name   string
	conn   io.ReadWriteCloser
	limits frame.Limits

	wmu sync.Mutex
	seq uint32

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func New(name string, conn io.ReadWriteCloser, limits frame.Limits) *Link {
	if limits.MaxPayloadBytes == 0 {
		limits = frame.DefaultLimits()
	}
	return &Link{
		name:   name,
		conn:   conn,
		limits: limits,
		closed: make(chan struct{}),
	}
}

func (l *Link) Name() string {
	return l.name
}

// Send writes one marshalled frame. b is not modified.
func (l *Link) Send(b []byte) error {
	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}
	out := append([]byte(nil), b...)

	l.wmu.Lock()
	defer l.wmu.Unlock()
	l.seq++
	if err := frame.StampSeq(out, l.seq); err != nil {
		observability.RecordLinkFrame("out", false)
		return err
	}
	if _, err := l.conn.Write(out); err != nil {
		observability.RecordLinkFrame("out", false)
		if isClosed(err) {
			return ErrLinkClosed
		}
		return err
	}
	observability.RecordLinkFrame("out", true)
	log.Trace().Str("link", l.name).Uint32("seq", l.seq).Int("bytes", len(out)).Msg("link: frame sent")
	return nil
}

// ReadFrame blocks for the next inbound frame. A closed link reads as io.EOF.
func (l *Link) ReadFrame() (frame.Frame, error) {
	fr, err := frame.ReadFrame(l.conn, l.limits)
	if err != nil {
		if isClosed(err) {
			return frame.Frame{}, io.EOF
		}
		observability.RecordLinkFrame("in", false)
		return frame.Frame{}, err
	}
	observability.RecordLinkFrame("in", true)
	return fr, nil
}

func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// Done is closed once Close has been called.
func (l *Link) Done() <-chan struct{} {
	return l.closed
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
