package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/wire"
)

// sourceBufferSize is the capacity of the source's output channel.
const sourceBufferSize = 64

// DefaultHandshakeTimeout bounds the WebSocket dial.
const DefaultHandshakeTimeout = 10 * time.Second

// SourceOptions configures a WSTradeSource.
type SourceOptions struct {
	ID     string
	URL    string
	Logger *log.Logger
}

// WSTradeSource is a blocking pipeline source that reads wire frames
// from a replay server. A normal closure from the server ends the
// stream; malformed frames are dropped and logged; any other transport
// error is surfaced so the controller terminates the run.
type WSTradeSource struct {
	id     string
	url    string
	logger *log.Logger

	conn *websocket.Conn
	out  chan *domain.Event

	emitted int64
	dropped int64

	killOnce sync.Once
	killed   chan struct{}
}

// NewWSTradeSource creates a source that will dial url on Open.
func NewWSTradeSource(opts SourceOptions) *WSTradeSource {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &WSTradeSource{
		id:     opts.ID,
		url:    opts.URL,
		logger: logger,
		out:    make(chan *domain.Event, sourceBufferSize),
		killed: make(chan struct{}),
	}
}

// Out is the source's event stream; closed at end of replay.
func (s *WSTradeSource) Out() <-chan *domain.Event { return s.out }

// ID implements component.Component.
func (s *WSTradeSource) ID() string { return s.id }

// Kind implements component.Component.
func (s *WSTradeSource) Kind() component.Kind { return component.KindSource }

// Open dials the replay server.
func (s *WSTradeSource) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%s: websocket dial: %w", s.id, err)
	}
	s.conn = conn
	return nil
}

// Kill closes the connection, unblocking any in-flight read.
func (s *WSTradeSource) Kill() {
	s.killOnce.Do(func() {
		close(s.killed)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// DoWork reads one frame from the server.
func (s *WSTradeSource) DoWork(ctx context.Context) (component.State, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			close(s.out)
			s.logger.Printf("[%s] replay finished, %d events (%d dropped)", s.id, s.emitted, s.dropped)
			return component.StateDone, nil
		}
		select {
		case <-s.killed:
			return component.StateException, context.Canceled
		default:
		}
		return component.StateException, fmt.Errorf("%s: read frame: %w", s.id, err)
	}

	ev, err := wire.Decode(data)
	if err != nil {
		// drop the frame and keep reading
		s.dropped++
		s.logger.Printf("[%s] dropping frame: %v", s.id, err)
		return component.StateOK, nil
	}
	ev.SourceID = s.id

	select {
	case s.out <- ev:
		s.emitted++
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-s.killed:
		return component.StateException, context.Canceled
	}
}

// Emitted is the number of events delivered downstream.
func (s *WSTradeSource) Emitted() int64 { return s.emitted }

// Dropped is the number of malformed frames discarded.
func (s *WSTradeSource) Dropped() int64 { return s.dropped }
