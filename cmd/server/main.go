// Package main runs the trade replay server: stored trade history is
// streamed to WebSocket clients as wire frames, with Prometheus metrics
// and a health endpoint on a separate listener.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/sources"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
	"backtest-lab/internal/stream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	addr := flag.String("addr", ":8080", "Replay WebSocket listen address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	// Seeding for in-memory mode
	seed := flag.Bool("seed", false, "Seed the in-memory store with a synthetic trade history")
	seedSID := flag.Int64("seed-sid", 133, "Security identifier for the seeded history")
	seedCount := flag.Int("seed-count", 100, "Number of seeded trades")
	seedPrice := flag.Float64("seed-price", 10.1, "Price of seeded trades")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *seed && !*useMemory {
		logger.Fatal("--seed only applies with --use-memory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trades, cleanup, err := createTradeStore(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create trade store: %v", err)
	}
	defer cleanup()

	if *seed {
		n, err := seedTrades(ctx, trades, *seedSID, *seedCount, *seedPrice)
		if err != nil {
			logger.Fatalf("seed trades: %v", err)
		}
		logger.Printf("Seeded %d trades for sid %d", n, *seedSID)
	}

	replay := stream.NewServer(stream.ServerOptions{
		Logger: logger,
		Trades: trades,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", replay)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	go startMetricsServer(logger, *metricsAddr)

	logger.Printf("Replay server listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}
	close(done)
	logger.Println("Shutdown complete")
}

// createTradeStore returns the configured trade store and its cleanup.
func createTradeStore(ctx context.Context, postgresDSN string, useMemory bool) (storage.TradeStore, func(), error) {
	if useMemory {
		return memory.NewTradeStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewTradeStore(pool), pool.Close, nil
}

// seedTrades loads a synthetic weekday trade history into the store so
// the server is usable without a database.
func seedTrades(ctx context.Context, trades storage.TradeStore, sid int64, count int, price float64) (int, error) {
	cfg := domain.SimulationConfig{
		SID:           sid,
		TradeCount:    count,
		TradeAmount:   100,
		TradePrice:    price,
		TradeInterval: time.Minute,
	}
	sources.NormalizeConfig(&cfg)
	env := sources.CreateTestEnvironment(cfg)

	records := make([]*domain.TradeRecord, 0, count)
	dt := env.FirstOpen()
	for i := 0; i < count; i++ {
		records = append(records, &domain.TradeRecord{
			SID:    sid,
			Price:  price,
			Volume: cfg.TradeAmount,
			DT:     dt,
		})
		if i < count-1 {
			next, err := env.NextTradingDT(dt, cfg.TradeInterval)
			if err != nil {
				return 0, err
			}
			dt = next
		}
	}
	if err := trades.InsertBulk(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// startMetricsServer serves Prometheus metrics on its own listener.
func startMetricsServer(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
