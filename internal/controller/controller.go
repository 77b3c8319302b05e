// Package controller supervises pipeline components: it runs each one
// as a goroutine, expects a liveness heartbeat between work units, and
// tears the system down when a component fails, raises an exception, or
// reports an unknown identity.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"backtest-lab/internal/component"
	"backtest-lab/internal/observability"
)

// Heartbeat protocol defaults.
const (
	DefaultPeriod      = 1 * time.Second
	DefaultTimeout     = 2 * time.Second
	DefaultGracePeriod = 1 * time.Second

	// MaxMissedBeats is how many evaluation rounds a component may stay
	// silent past the timeout before it is declared failed.
	MaxMissedBeats = 2
)

// Sentinel errors.
var (
	ErrUnknownIdentity    = errors.New("unknown component identity")
	ErrComponentFailed    = errors.New("component failed heartbeat")
	ErrComponentException = errors.New("component exception")
	ErrDuplicateComponent = errors.New("duplicate component id")
)

// SystemState is the controller's lifecycle phase.
type SystemState string

// System states.
const (
	StateRunning   SystemState = "RUNNING"
	StateShutdown  SystemState = "SHUTDOWN"
	StateTerminate SystemState = "TERMINATE"
)

// Options configures a Controller.
type Options struct {
	Logger      *log.Logger
	Period      time.Duration
	Timeout     time.Duration
	GracePeriod time.Duration

	// Freeform topologies admit components that appear on the control
	// channel without prior registration; fixed topologies treat them
	// as a fatal protocol violation.
	Freeform bool
}

// Controller owns the control channel and the component runners.
type Controller struct {
	logger   *log.Logger
	period   time.Duration
	timeout  time.Duration
	grace    time.Duration
	freeform bool

	components map[string]component.Component
	heartbeats chan component.Heartbeat

	mu       sync.Mutex
	state    SystemState
	tracked  map[string]bool
	misses   map[string]int
	lastSeen map[string]time.Time

	wg sync.WaitGroup
}

// New creates a controller with no components registered.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	period := opts.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Controller{
		logger:     logger,
		period:     period,
		timeout:    timeout,
		grace:      grace,
		freeform:   opts.Freeform,
		components: make(map[string]component.Component),
		heartbeats: make(chan component.Heartbeat, 64),
		state:      StateRunning,
		tracked:    make(map[string]bool),
		misses:     make(map[string]int),
		lastSeen:   make(map[string]time.Time),
	}
}

// Register adds a component before Run.
func (c *Controller) Register(comp component.Component) error {
	if _, exists := c.components[comp.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, comp.ID())
	}
	c.components[comp.ID()] = comp
	c.tracked[comp.ID()] = true
	return nil
}

// State reports the controller's lifecycle phase.
func (c *Controller) State() SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s SystemState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run starts every registered component and supervises until all report
// DONE, one fails, or the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if len(c.components) == 0 && !c.freeform {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now()
	for id, comp := range c.components {
		c.lastSeen[id] = now
		c.wg.Add(1)
		go c.runComponent(ctx, comp)
	}
	c.logger.Printf("[controller] supervising %d components", len(c.components))

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case hb := <-c.heartbeats:
			if err := c.handleHeartbeat(hb); err != nil {
				c.terminate(cancel)
				return err
			}
			if len(c.tracked) == 0 {
				c.setState(StateShutdown)
				cancel()
				c.wg.Wait()
				c.logger.Print("[controller] all components done")
				return nil
			}

		case <-ticker.C:
			if failed := c.evaluateLiveness(); failed != "" {
				c.terminate(cancel)
				return fmt.Errorf("%w: %s missed %d heartbeats", ErrComponentFailed, failed, MaxMissedBeats)
			}

		case <-ctx.Done():
			c.terminate(cancel)
			return ctx.Err()
		}
	}
}

// handleHeartbeat folds one control message into the tracking sets.
func (c *Controller) handleHeartbeat(hb component.Heartbeat) error {
	switch hb.State {
	case component.StateDone:
		// DONE untracks silently
		delete(c.tracked, hb.ID)
		delete(c.misses, hb.ID)
		delete(c.lastSeen, hb.ID)
		return nil

	case component.StateException:
		c.logger.Printf("[controller] component %s raised exception: %v", hb.ID, hb.Err)
		return fmt.Errorf("%w: %s: %v", ErrComponentException, hb.ID, hb.Err)

	default:
		if !c.tracked[hb.ID] {
			if !c.freeform {
				return fmt.Errorf("%w: %s", ErrUnknownIdentity, hb.ID)
			}
			c.logger.Printf("[controller] admitting new component %s", hb.ID)
			c.tracked[hb.ID] = true
		}
		c.lastSeen[hb.ID] = hb.CTime
		c.misses[hb.ID] = 0
		return nil
	}
}

// evaluateLiveness bumps the miss counter for every tracked component
// whose last heartbeat is older than the timeout, returning the id of
// the first one to exceed the limit.
func (c *Controller) evaluateLiveness() string {
	now := time.Now()
	for id := range c.tracked {
		if now.Sub(c.lastSeen[id]) <= c.timeout {
			continue
		}
		c.misses[id]++
		observability.RecordHeartbeatMiss(id)
		c.logger.Printf("[controller] component %s missed heartbeat (%d/%d)", id, c.misses[id], MaxMissedBeats)
		if c.misses[id] >= MaxMissedBeats {
			delete(c.tracked, id)
			observability.RecordComponentFailure(id)
			return id
		}
	}
	return ""
}

// terminate cancels all runners and, after the grace period, kills
// whatever has not unwound on its own.
func (c *Controller) terminate(cancel context.CancelFunc) {
	c.setState(StateTerminate)
	cancel()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(c.grace):
		c.logger.Print("[controller] grace period elapsed, killing components")
		for _, comp := range c.components {
			comp.Kill()
		}
		c.wg.Wait()
	}
}

// runComponent is the confirm-then-work loop: open, then alternate
// heartbeats with single units of work until the component finishes.
// A component wedged inside DoWork stops confirming and is eventually
// declared failed by the supervisor.
func (c *Controller) runComponent(ctx context.Context, comp component.Component) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.send(ctx, component.Heartbeat{
				ID:    comp.ID(),
				State: component.StateException,
				CTime: time.Now(),
				Err:   fmt.Errorf("panic: %v", r),
			})
		}
	}()

	if err := comp.Open(ctx); err != nil {
		c.send(ctx, component.Heartbeat{
			ID:    comp.ID(),
			State: component.StateException,
			CTime: time.Now(),
			Err:   fmt.Errorf("open: %w", err),
		})
		return
	}

	var lastBeat time.Time
	for {
		if now := time.Now(); now.Sub(lastBeat) >= c.period {
			c.send(ctx, component.Heartbeat{ID: comp.ID(), State: component.StateOK, CTime: now})
			lastBeat = now
		}

		state, err := comp.DoWork(ctx)
		switch state {
		case component.StateDone:
			c.send(ctx, component.Heartbeat{ID: comp.ID(), State: component.StateDone, CTime: time.Now()})
			return
		case component.StateException:
			// cancellation during teardown is not a component fault
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.send(ctx, component.Heartbeat{
				ID:    comp.ID(),
				State: component.StateException,
				CTime: time.Now(),
				Err:   err,
			})
			return
		}
	}
}

// Deliver places a control message on the heartbeat channel on behalf
// of a component the controller does not run itself (freeform
// topologies).
func (c *Controller) Deliver(hb component.Heartbeat) {
	c.heartbeats <- hb
}

// send delivers a control message unless the supervisor is gone.
func (c *Controller) send(ctx context.Context, hb component.Heartbeat) {
	select {
	case c.heartbeats <- hb:
	case <-ctx.Done():
	}
}
