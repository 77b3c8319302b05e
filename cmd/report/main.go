// Package main renders a report for a completed simulation run from
// its persisted snapshots.
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
	"syscall"

	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
)

func main() {
	runID := flag.String("run-id", "", "Run identifier to report on (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (required)")
	outputDir := flag.String("output-dir", "", "Directory for report files (stdout when empty)")
	outputJSON := flag.Bool("json", false, "Output the run summary as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("--run-id is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
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

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()

	gen := reporting.NewGenerator(chstore.NewSnapshotStore(conn))
	summary, err := gen.Generate(ctx, *runID, nil)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Fatalf("no snapshots stored for run %s", *runID)
		}
		logger.Fatalf("generate report: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
		return
	}

	if *outputDir == "" {
		fmt.Print(reporting.RenderMarkdown(summary))
		return
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("create output directory: %v", err)
	}
	md := filepath.Join(*outputDir, fmt.Sprintf("REPORT_%s.md", *runID))
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(summary)), 0644); err != nil {
		logger.Fatalf("write markdown report: %v", err)
	}
	csv := filepath.Join(*outputDir, fmt.Sprintf("returns_%s.csv", *runID))
	if err := os.WriteFile(csv, []byte(reporting.RenderReturnsCSV(summary.Returns)), 0644); err != nil {
		logger.Fatalf("write returns csv: %v", err)
	}
	logger.Printf("Reports for run %s written to %s/", *runID, *outputDir)
}
