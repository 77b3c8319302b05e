// Package stream carries trade history over WebSocket: a replay server
// that streams stored trades as wire frames, and a source component
// that feeds the received events into the pipeline.
package stream

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/wire"
)

// DefaultWriteTimeout bounds each frame write to a replay client.
const DefaultWriteTimeout = 10 * time.Second

// ServerOptions configures a replay Server.
type ServerOptions struct {
	Logger       *log.Logger
	Trades       storage.TradeStore
	WriteTimeout time.Duration
}

// Server replays stored trades to WebSocket clients. A client requests
// a sid and optional time range via query parameters; the server
// streams every matching trade as a wire frame in dt order and then
// closes with a normal closure, which the source treats as end of
// stream.
type Server struct {
	logger       *log.Logger
	trades       storage.TradeStore
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer creates a replay server over a trade store.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Server{
		logger:       logger,
		trades:       opts.Trades,
		writeTimeout: writeTimeout,
	}
}

// ServeHTTP upgrades the request and replays the requested trades.
// Query parameters: sid (required), start_us and end_us (optional,
// microseconds since epoch UTC, inclusive).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid, err := strconv.ParseInt(r.URL.Query().Get("sid"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid sid", http.StatusBadRequest)
		return
	}

	records, err := s.lookup(r, sid)
	if err != nil {
		s.logger.Printf("[stream] lookup sid %d: %v", sid, err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[stream] upgrade: %v", err)
		return
	}
	defer conn.Close()

	sourceID := "ws-replay-" + strconv.FormatInt(sid, 10)
	sent := 0
	for _, record := range records {
		data, err := wire.Encode(record.Event(sourceID))
		if err != nil {
			s.logger.Printf("[stream] encode trade: %v", err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Printf("[stream] write to client: %v", err)
			return
		}
		sent++
	}

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.logger.Printf("[stream] replayed %d trades for sid %d", sent, sid)
}

func (s *Server) lookup(r *http.Request, sid int64) ([]*domain.TradeRecord, error) {
	startRaw := r.URL.Query().Get("start_us")
	endRaw := r.URL.Query().Get("end_us")
	if startRaw == "" && endRaw == "" {
		return s.trades.GetBySID(r.Context(), sid)
	}

	start, err := parseMicros(startRaw, time.UnixMicro(0))
	if err != nil {
		return nil, fmt.Errorf("parse start_us: %w", err)
	}
	end, err := parseMicros(endRaw, time.UnixMicro(math.MaxInt64))
	if err != nil {
		return nil, fmt.Errorf("parse end_us: %w", err)
	}
	return s.trades.GetByTimeRange(r.Context(), sid, start, end)
}

func parseMicros(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback.UTC(), nil
	}
	us, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}
