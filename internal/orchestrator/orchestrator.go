// Package orchestrator assembles and runs a complete simulation
// pipeline: replay sources feeding the chronological merge, the
// transaction simulator and its passthrough, the pairing merge, the
// trading client, and the heartbeat controller supervising all of them.
package orchestrator

import (
	"context"
	"log"
	"time"

	"backtest-lab/internal/algo"
	"backtest-lab/internal/calendar"
	"backtest-lab/internal/client"
	"backtest-lab/internal/component"
	"backtest-lab/internal/controller"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/feed"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/perf"
	"backtest-lab/internal/risk"
	"backtest-lab/internal/sources"
	"backtest-lab/internal/txnsim"
)

// orderChannelSize bounds the client-to-order-source relay.
const orderChannelSize = 64

// EventSource is a registrable pipeline source.
type EventSource interface {
	component.Component
	Out() <-chan *domain.Event
}

// Options configures a pipeline.
type Options struct {
	Logger      *log.Logger
	Config      domain.SimulationConfig
	Environment *calendar.Environment // optional; synthesized from Config when nil
	Algorithm   algo.Algorithm        // optional; defaults to a no-op
	Events      []*domain.Event       // optional replay stream; generated from Config when nil
	Source      EventSource           // optional external trade source; takes precedence over Events

	// OnSnapshot receives every daily snapshot in addition to the
	// pipeline's own collection (persistence hook).
	OnSnapshot func(*domain.PerformanceSnapshot)

	// Heartbeat protocol overrides, zero for defaults.
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	GracePeriod      time.Duration
}

// Result is what a completed run yields.
type Result struct {
	RunID         string
	Report        *risk.Report
	Snapshots     []*domain.PerformanceSnapshot
	FinalSnapshot *domain.PerformanceSnapshot
	EventsMerged  int64
	RecordsMerged int64
	Transactions  int64
	Frames        int64
	Orders        int64
	OpenInterest  int64
}

// Pipeline is an assembled, runnable simulation.
type Pipeline struct {
	logger *log.Logger
	runID  string

	ctl     *controller.Controller
	feed    *feed.Feed
	merge   *feed.Merge
	conduit *txnsim.Conduit
	client  *client.TradingClient
	tracker *perf.Tracker

	snapshots []*domain.PerformanceSnapshot
}

// CreateTestPipeline builds a full pipeline from a harness config:
// synthetic environment, generated trade and order histories, slippage
// model per the configured style, and the heartbeat controller.
func CreateTestPipeline(opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	cfg := opts.Config
	sources.NormalizeConfig(&cfg)

	env := opts.Environment
	if env == nil {
		env = sources.CreateTestEnvironment(cfg)
	}

	runID := idhash.ComputeRunID(cfg.SID, string(cfg.Style), env.PeriodStart, env.PeriodEnd, env.CapitalBase)

	p := &Pipeline{logger: logger, runID: runID}

	p.tracker = perf.NewTracker(perf.Options{
		Environment: env,
		Logger:      logger,
		RunID:       runID,
		OnSnapshot: func(s *domain.PerformanceSnapshot) {
			p.snapshots = append(p.snapshots, s)
			if opts.OnSnapshot != nil {
				opts.OnSnapshot(s)
			}
		},
	})

	var model txnsim.SlippageModel
	if cfg.Style == domain.StyleFixedSlippage {
		model = txnsim.NewFixedSlippage()
	} else {
		model = txnsim.NewVolumeShare()
	}
	sim := txnsim.NewSimulator(txnsim.Options{
		SourceID: idhash.ComponentIdentity("sim", 0),
		Model:    model,
		Logger:   logger,
	})

	p.feed = feed.NewFeed(feed.Options{ID: idhash.ComponentIdentity("feed", 0), Logger: logger})

	var tradeSrc EventSource
	if opts.Source != nil {
		tradeSrc = opts.Source
	} else {
		tradeID := idhash.ComponentIdentity("src-trades", 0)
		tradeEvents := opts.Events
		if tradeEvents == nil {
			var err error
			tradeEvents, err = sources.CreateTradeHistory(tradeID, cfg, env)
			if err != nil {
				return nil, err
			}
		}
		tradeSrc = sources.NewSpecificTrades(tradeID, tradeEvents, logger)
	}
	if err := p.feed.AddSource(tradeSrc.ID(), tradeSrc.Out(), true); err != nil {
		return nil, err
	}

	var orderSrc *sources.SpecificTrades
	if cfg.OrderCount > 0 {
		orderID := idhash.ComponentIdentity("src-orders", 0)
		orderEvents := sources.CreateOrderHistory(orderID, cfg, env)
		orderSrc = sources.NewSpecificTrades(orderID, orderEvents, logger)
		if err := p.feed.AddSource(orderSrc.ID(), orderSrc.Out(), true); err != nil {
			return nil, err
		}
	}

	ordersCh := make(chan *domain.Order, orderChannelSize)
	relay := sources.NewOrderSource(sources.OrderSourceOptions{
		ID:     idhash.ComponentIdentity("src-relay", 0),
		Logger: logger,
		Orders: ordersCh,
	})
	if err := p.feed.AddSource(relay.ID(), relay.Out(), false); err != nil {
		return nil, err
	}

	p.conduit = txnsim.NewConduit(sim, p.feed.Out())

	p.merge = feed.NewMerge(feed.MergeOptions{
		ID:     idhash.ComponentIdentity("merge", 0),
		Logger: logger,
		Base:   p.conduit.Base(),
	})
	p.merge.AddTransform(p.conduit.Out())

	algorithm := opts.Algorithm
	if algorithm == nil {
		algorithm = &algo.NoopAlgorithm{}
	}
	p.client = client.New(client.Options{
		ID:        idhash.ComponentIdentity("client", 0),
		Logger:    logger,
		Tracker:   p.tracker,
		Algorithm: algorithm,
		In:        p.merge.Out(),
		Orders:    ordersCh,
	})

	p.ctl = controller.New(controller.Options{
		Logger:      logger,
		Period:      opts.HeartbeatPeriod,
		Timeout:     opts.HeartbeatTimeout,
		GracePeriod: opts.GracePeriod,
	})
	comps := []component.Component{tradeSrc, relay, p.feed, p.conduit, p.merge, p.client}
	if orderSrc != nil {
		comps = append(comps, orderSrc)
	}
	for _, comp := range comps {
		if err := p.ctl.Register(comp); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// RunID is the deterministic identifier of this simulation.
func (p *Pipeline) RunID() string { return p.runID }

// Tracker exposes the performance tracker for inspection after a run.
func (p *Pipeline) Tracker() *perf.Tracker { return p.tracker }

// Run executes the pipeline to completion under the controller.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	if err := p.ctl.Run(ctx); err != nil {
		observability.RecordRun("failed", time.Since(started))
		return nil, err
	}
	observability.RecordRun("completed", time.Since(started))

	sim := p.conduit.Simulator()
	observability.RecordMergeTotals(p.feed.Emitted(), p.feed.Discarded(), p.merge.Emitted())
	observability.RecordSimulationTotals(
		sim.TransactionCount(), p.client.OrderCount(), p.client.FrameCount(),
		sim.OpenOrders().TotalOpen())
	return &Result{
		RunID:         p.runID,
		Report:        p.client.Report(),
		Snapshots:     p.snapshots,
		FinalSnapshot: p.tracker.Snapshot(),
		EventsMerged:  p.feed.Emitted(),
		RecordsMerged: p.merge.Emitted(),
		Transactions:  sim.TransactionCount(),
		Frames:        p.client.FrameCount(),
		Orders:        p.client.OrderCount(),
		OpenInterest:  sim.OpenOrders().TotalOpen(),
	}, nil
}
