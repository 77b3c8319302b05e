package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/wire"
)

func seedTrades(t *testing.T, count int) *memory.TradeStore {
	t.Helper()
	store := memory.NewTradeStore()
	dt := time.Date(2006, 1, 3, 14, 30, 0, 0, time.UTC)

	var trades []*domain.TradeRecord
	for i := 0; i < count; i++ {
		trades = append(trades, &domain.TradeRecord{
			SID:    133,
			Price:  10.0 + float64(i)/100,
			Volume: 100,
			DT:     dt.Add(time.Duration(i)*time.Minute + 250*time.Microsecond),
		})
	}
	require.NoError(t, store.InsertBulk(context.Background(), trades))
	return store
}

func wsURL(t *testing.T, srv *httptest.Server, query string) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http") + query
}

// runSource drives the component loop to completion and collects the
// emitted events.
func runSource(t *testing.T, src *WSTradeSource) []*domain.Event {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	done := make(chan error, 1)
	go func() {
		for {
			state, err := src.DoWork(ctx)
			if err != nil {
				done <- err
				return
			}
			if state == component.StateDone {
				done <- nil
				return
			}
		}
	}()

	var events []*domain.Event
	for ev := range src.Out() {
		events = append(events, ev)
	}
	require.NoError(t, <-done)
	return events
}

func TestReplayRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewServer(ServerOptions{Trades: seedTrades(t, 25)}))
	defer srv.Close()

	src := NewWSTradeSource(SourceOptions{
		ID:  "src-ws",
		URL: wsURL(t, srv, "?sid=133"),
	})
	events := runSource(t, src)

	require.Len(t, events, 25)
	require.Equal(t, int64(25), src.Emitted())
	for i, ev := range events {
		require.Equal(t, domain.EventTypeTrade, ev.Type)
		require.Equal(t, "src-ws", ev.SourceID, "source id must be stamped locally")
		require.NotNil(t, ev.Trade)
		require.Equal(t, int64(133), ev.Trade.SID)
		if i > 0 {
			require.True(t, events[i-1].DT.Before(ev.DT), "events must arrive in dt order")
		}
	}

	// microsecond precision survives the wire
	want := time.Date(2006, 1, 3, 14, 30, 0, 250000, time.UTC)
	require.True(t, events[0].DT.Equal(want), "got %v want %v", events[0].DT, want)
}

func TestReplayTimeRange(t *testing.T) {
	srv := httptest.NewServer(NewServer(ServerOptions{Trades: seedTrades(t, 10)}))
	defer srv.Close()

	base := time.Date(2006, 1, 3, 14, 30, 0, 0, time.UTC)
	start := base.Add(2 * time.Minute).UnixMicro()
	end := base.Add(5 * time.Minute).Add(time.Second).UnixMicro()

	src := NewWSTradeSource(SourceOptions{
		ID:  "src-ws",
		URL: wsURL(t, srv, "?sid=133&start_us="+strconv.FormatInt(start, 10)+"&end_us="+strconv.FormatInt(end, 10)),
	})
	events := runSource(t, src)
	require.Len(t, events, 4)
}

func TestReplayRejectsMissingSID(t *testing.T) {
	srv := httptest.NewServer(NewServer(ServerOptions{Trades: seedTrades(t, 1)}))
	defer srv.Close()

	src := NewWSTradeSource(SourceOptions{ID: "src-ws", URL: wsURL(t, srv, "")})
	err := src.Open(context.Background())
	require.Error(t, err)
}

func TestSourceDropsMalformedFrames(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

		good, err := wire.Encode(domain.NewTradeEvent("server", 133, 10.0, 100,
			time.Date(2006, 1, 3, 14, 30, 0, 0, time.UTC)))
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, good))

		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	src := NewWSTradeSource(SourceOptions{ID: "src-ws", URL: wsURL(t, srv, "")})
	events := runSource(t, src)

	require.Len(t, events, 1)
	require.Equal(t, int64(1), src.Dropped())
}
