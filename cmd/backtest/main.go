package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
	"backtest-lab/internal/stream"
)

func main() {
	// Simulation parameters
	sid := flag.Int64("sid", 133, "Security identifier to simulate")
	capitalBase := flag.Float64("capital-base", 100000.0, "Starting capital")
	style := flag.String("style", "VOLUME_SHARE", "Fill model: VOLUME_SHARE, FIXED_SLIPPAGE")
	maxDrawdown := flag.Float64("max-drawdown", 0.50, "Max drawdown fraction before the tracker halts the run")
	periodStart := flag.String("period-start", "", "Simulation period start (YYYY-MM-DD)")
	periodEnd := flag.String("period-end", "", "Simulation period end (YYYY-MM-DD)")

	// Synthetic trade stream
	tradeCount := flag.Int("trade-count", 100, "Number of synthetic trades")
	tradeAmount := flag.Int64("trade-amount", 100, "Volume per synthetic trade")
	tradePrice := flag.Float64("trade-price", 10.1, "Price per synthetic trade")
	tradeInterval := flag.Duration("trade-interval", time.Minute, "Spacing between synthetic trades")

	// Synthetic order stream
	orderCount := flag.Int("order-count", 100, "Number of synthetic orders")
	orderAmount := flag.Int64("order-amount", 100, "Shares per synthetic order")
	orderInterval := flag.Duration("order-interval", time.Minute, "Spacing between synthetic orders")
	alternate := flag.Bool("alternate", false, "Alternate buy/sell sign per order")

	// Trade source overrides (default is the synthetic stream)
	wsURL := flag.String("ws-url", "", "Replay server WebSocket URL to stream trades from")
	fromStore := flag.Bool("from-store", false, "Load trades and benchmark data from PostgreSQL")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	persist := flag.Bool("persist", false, "Persist daily snapshots to ClickHouse")

	// Output
	outputDir := flag.String("output-dir", "", "Directory for report files (stdout when empty)")
	outputJSON := flag.Bool("json", false, "Output the run summary as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	*style = strings.ToUpper(*style)
	if *style != string(domain.StyleVolumeShare) && *style != string(domain.StyleFixedSlippage) {
		logger.Fatalf("Invalid style: %s. Must be VOLUME_SHARE or FIXED_SLIPPAGE", *style)
	}
	if *fromStore && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required with --from-store")
	}
	if *persist && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required with --persist")
	}
	if (*wsURL != "" || *fromStore) && (*periodStart == "" || *periodEnd == "") {
		logger.Fatal("--period-start and --period-end are required when trades come from a replay server or storage")
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

	cfg := domain.SimulationConfig{
		SID:           *sid,
		CapitalBase:   *capitalBase,
		MaxDrawdown:   *maxDrawdown,
		Style:         domain.SimulationStyle(*style),
		TradeCount:    *tradeCount,
		TradeAmount:   *tradeAmount,
		TradePrice:    *tradePrice,
		TradeInterval: *tradeInterval,
		OrderCount:    *orderCount,
		OrderAmount:   *orderAmount,
		OrderInterval: *orderInterval,
		Alternate:     *alternate,
	}
	cfg.PeriodStart = parseDate(logger, "--period-start", *periodStart)
	cfg.PeriodEnd = parseDate(logger, "--period-end", *periodEnd)

	opts := orchestrator.Options{
		Logger: logger,
		Config: cfg,
	}

	switch {
	case *wsURL != "":
		opts.Source = stream.NewWSTradeSource(stream.SourceOptions{
			ID:     "src-ws-trades",
			URL:    *wsURL,
			Logger: logger,
		})
	case *fromStore:
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		events, env, err := loadFromStore(ctx, pool, cfg)
		if err != nil {
			logger.Fatalf("load from storage: %v", err)
		}
		logger.Printf("Loaded %d trades for sid %d from storage", len(events), cfg.SID)
		opts.Events = events
		opts.Environment = env
	}

	if *persist {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()

		snapStore := chstore.NewSnapshotStore(conn)
		opts.OnSnapshot = func(s *domain.PerformanceSnapshot) {
			if err := snapStore.Insert(ctx, s); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					return
				}
				logger.Printf("persist snapshot %s: %v", s.Date.Format("2006-01-02"), err)
				return
			}
			observability.RecordSnapshotPersisted()
		}
	}

	pipeline, err := orchestrator.CreateTestPipeline(opts)
	if err != nil {
		logger.Fatalf("assemble pipeline: %v", err)
	}

	logger.Printf("Running simulation: run=%s sid=%d style=%s", pipeline.RunID(), cfg.SID, cfg.Style)
	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}
	logger.Printf("Simulation complete: %d events merged, %d records paired, %d transactions, %d frames",
		result.EventsMerged, result.RecordsMerged, result.Transactions, result.Frames)

	summary := reporting.BuildSummary(result.FinalSnapshot, result.Report, time.Now().UTC())

	if *outputJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
	}
	if *outputDir != "" {
		if err := writeReports(*outputDir, result.RunID, summary); err != nil {
			logger.Fatalf("write reports: %v", err)
		}
		logger.Printf("Reports written to %s/", *outputDir)
	} else if !*outputJSON {
		fmt.Print(reporting.RenderMarkdown(summary))
	}
}

// parseDate parses a YYYY-MM-DD flag value; empty stays zero so the
// harness can pick its own period.
func parseDate(logger *log.Logger, name, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		logger.Fatalf("Invalid %s: %v", name, err)
	}
	return t
}

// loadFromStore reads the trade history and benchmark environment for
// the configured period out of PostgreSQL.
func loadFromStore(ctx context.Context, pool *pgstore.Pool, cfg domain.SimulationConfig) ([]*domain.Event, *calendar.Environment, error) {
	trades := pgstore.NewTradeStore(pool)
	records, err := trades.GetByTimeRange(ctx, cfg.SID, cfg.PeriodStart, cfg.PeriodEnd.AddDate(0, 0, 1))
	if err != nil {
		return nil, nil, fmt.Errorf("load trades for sid %d: %w", cfg.SID, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no stored trades for sid %d in period", cfg.SID)
	}
	events := make([]*domain.Event, 0, len(records))
	for _, r := range records {
		events = append(events, r.Event("src-db-trades"))
	}

	benchmarks := pgstore.NewBenchmarkStore(pool)
	returns, err := benchmarks.GetReturns(ctx, cfg.PeriodStart, cfg.PeriodEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("load benchmark returns: %w", err)
	}
	if len(returns) == 0 {
		return nil, nil, errors.New("no benchmark returns stored for period, run ingest first")
	}
	curves, err := benchmarks.GetTreasuryCurves(ctx, cfg.PeriodStart, cfg.PeriodEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("load treasury curves: %w", err)
	}

	env := calendar.New(calendar.Options{
		BenchmarkReturns: returns,
		TreasuryCurves:   curves,
		PeriodStart:      cfg.PeriodStart,
		PeriodEnd:        cfg.PeriodEnd,
		CapitalBase:      cfg.CapitalBase,
		MaxDrawdown:      cfg.MaxDrawdown,
	})
	return events, env, nil
}

// writeReports renders the markdown report and daily returns CSV into dir.
func writeReports(dir, runID string, summary *reporting.Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	md := filepath.Join(dir, fmt.Sprintf("REPORT_%s.md", runID))
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(summary)), 0644); err != nil {
		return err
	}
	csv := filepath.Join(dir, fmt.Sprintf("returns_%s.csv", runID))
	return os.WriteFile(csv, []byte(reporting.RenderReturnsCSV(summary.Returns)), 0644)
}
