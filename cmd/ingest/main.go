// Package main seeds PostgreSQL with a deterministic trade history and
// the benchmark reference data a simulation needs: daily benchmark
// returns and treasury curves over the trading period. A backtest run
// with --from-store replays exactly what ingest wrote.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/sources"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (required)")

	// Trade history
	sid := flag.Int64("sid", 133, "Security identifier")
	tradeCount := flag.Int("trade-count", 100, "Number of trades to generate")
	tradeAmount := flag.Int64("trade-amount", 100, "Volume per trade")
	tradePrice := flag.Float64("trade-price", 10.1, "Price per trade")
	tradeInterval := flag.Duration("trade-interval", time.Minute, "Spacing between trades")
	periodStart := flag.String("period-start", "2006-01-01", "Period start (YYYY-MM-DD)")

	// Benchmark reference data
	benchmarkReturn := flag.Float64("benchmark-return", 0.0, "Daily benchmark return for every trading day")
	treasuryRate := flag.Float64("treasury-rate", 0.045, "Treasury rate across all curve durations")

	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	start, err := time.Parse("2006-01-02", *periodStart)
	if err != nil {
		logger.Fatalf("Invalid --period-start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}

	cfg := domain.SimulationConfig{
		SID:           *sid,
		PeriodStart:   start,
		TradeCount:    *tradeCount,
		TradeAmount:   *tradeAmount,
		TradePrice:    *tradePrice,
		TradeInterval: *tradeInterval,
	}
	sources.NormalizeConfig(&cfg)

	returns, curves := buildBenchmarkData(cfg, *benchmarkReturn, *treasuryRate)
	env := calendar.New(calendar.Options{
		BenchmarkReturns: returns,
		TreasuryCurves:   curves,
		PeriodStart:      cfg.PeriodStart,
		PeriodEnd:        cfg.PeriodEnd,
	})
	records, err := buildTradeHistory(cfg, env)
	if err != nil {
		logger.Fatalf("generate trade history: %v", err)
	}
	if len(records) == 0 {
		logger.Fatal("--trade-count must be positive")
	}

	trades := pgstore.NewTradeStore(pool)
	if err := trades.InsertBulk(ctx, records); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Fatalf("trades for sid %d already ingested for this period", cfg.SID)
		}
		logger.Fatalf("insert trades: %v", err)
	}
	logger.Printf("Ingested %d trades for sid %d (%s to %s)",
		len(records), cfg.SID,
		records[0].DT.Format(time.RFC3339), records[len(records)-1].DT.Format(time.RFC3339))

	benchmarks := pgstore.NewBenchmarkStore(pool)
	if err := benchmarks.InsertReturns(ctx, returns); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Println("Benchmark returns already present, skipping")
		} else {
			logger.Fatalf("insert benchmark returns: %v", err)
		}
	} else {
		logger.Printf("Ingested %d benchmark returns", len(returns))
	}

	if err := benchmarks.InsertTreasuryCurves(ctx, curves); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Println("Treasury curves already present, skipping")
		} else {
			logger.Fatalf("insert treasury curves: %v", err)
		}
	} else {
		logger.Printf("Ingested %d treasury curves", len(curves))
	}
}

// buildBenchmarkData generates a flat weekday benchmark series and a
// constant treasury curve for the config's period.
func buildBenchmarkData(cfg domain.SimulationConfig, dailyReturn, rate float64) ([]domain.DailyReturn, map[time.Time]domain.TreasuryCurve) {
	var returns []domain.DailyReturn
	curves := make(map[time.Time]domain.TreasuryCurve)

	for day := calendar.NormalizeDate(cfg.PeriodStart); !day.After(cfg.PeriodEnd); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		returns = append(returns, domain.DailyReturn{Date: day, Returns: dailyReturn})
		curves[day] = domain.TreasuryCurve{
			"1month": &rate, "3month": &rate, "6month": &rate, "1year": &rate,
		}
	}
	return returns, curves
}

// buildTradeHistory generates trade records spaced through market hours,
// the same stepping the harness uses for its synthetic stream.
func buildTradeHistory(cfg domain.SimulationConfig, env *calendar.Environment) ([]*domain.TradeRecord, error) {
	records := make([]*domain.TradeRecord, 0, cfg.TradeCount)
	dt := env.FirstOpen()
	for i := 0; i < cfg.TradeCount; i++ {
		records = append(records, &domain.TradeRecord{
			SID:    cfg.SID,
			Price:  cfg.TradePrice,
			Volume: cfg.TradeAmount,
			DT:     dt,
		})
		if i < cfg.TradeCount-1 {
			next, err := env.NextTradingDT(dt, cfg.TradeInterval)
			if err != nil {
				return nil, err
			}
			dt = next
		}
	}
	return records, nil
}
