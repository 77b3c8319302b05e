package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"backtest-lab/internal/component"
)

// fakeComponent does a fixed number of work units, then finishes (or
// misbehaves, depending on the knobs).
type fakeComponent struct {
	id       string
	units    int
	failWith error
	wedge    chan struct{} // when set, DoWork blocks here forever
	killed   bool
	done     int
}

func (f *fakeComponent) ID() string                     { return f.id }
func (f *fakeComponent) Kind() component.Kind           { return component.KindSource }
func (f *fakeComponent) Open(ctx context.Context) error { return nil }
func (f *fakeComponent) Kill()                          { f.killed = true }
func (f *fakeComponent) DoWork(ctx context.Context) (component.State, error) {
	if f.wedge != nil {
		select {
		case <-f.wedge:
		case <-ctx.Done():
		}
		return component.StateException, ctx.Err()
	}
	if f.failWith != nil {
		return component.StateException, f.failWith
	}
	if f.done >= f.units {
		return component.StateDone, nil
	}
	f.done++
	time.Sleep(time.Millisecond)
	return component.StateOK, nil
}

func testController(freeform bool) *Controller {
	return New(Options{
		Period:      5 * time.Millisecond,
		Timeout:     10 * time.Millisecond,
		GracePeriod: 20 * time.Millisecond,
		Freeform:    freeform,
	})
}

func TestControllerCleanShutdown(t *testing.T) {
	c := testController(false)
	a := &fakeComponent{id: "src-a", units: 5}
	b := &fakeComponent{id: "sink-b", units: 3}
	if err := c.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.done != 5 || b.done != 3 {
		t.Errorf("work done = %d/%d, want 5/3", a.done, b.done)
	}
	if got := c.State(); got != StateShutdown {
		t.Errorf("state after clean run = %s, want %s", got, StateShutdown)
	}
}

func TestControllerComponentException(t *testing.T) {
	c := testController(false)
	boom := errors.New("boom")
	if err := c.Register(&fakeComponent{id: "src-a", units: 100}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register(&fakeComponent{id: "bad-b", failWith: boom}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := c.Run(context.Background())
	if !errors.Is(err, ErrComponentException) {
		t.Fatalf("Run err = %v, want ErrComponentException", err)
	}
	if got := c.State(); got != StateTerminate {
		t.Errorf("state after exception = %s, want %s", got, StateTerminate)
	}
}

func TestControllerMissedHeartbeats(t *testing.T) {
	c := testController(false)
	wedged := &fakeComponent{id: "stuck-a", wedge: make(chan struct{})}
	if err := c.Register(wedged); err != nil {
		t.Fatalf("Register: %v", err)
	}

	start := time.Now()
	err := c.Run(context.Background())
	if !errors.Is(err, ErrComponentFailed) {
		t.Fatalf("Run err = %v, want ErrComponentFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("failure detection took %v", elapsed)
	}
}

func TestControllerUnknownIdentity(t *testing.T) {
	c := testController(false)
	if err := c.Register(&fakeComponent{id: "src-a", units: 1000}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	go c.Deliver(component.Heartbeat{ID: "intruder", State: component.StateOK, CTime: time.Now()})

	err := c.Run(context.Background())
	if !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("Run err = %v, want ErrUnknownIdentity", err)
	}
}

func TestControllerFreeformAdmission(t *testing.T) {
	c := testController(true)
	if err := c.Register(&fakeComponent{id: "src-a", units: 3}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// an external component that beats once and then reports done
	go func() {
		c.Deliver(component.Heartbeat{ID: "walk-in", State: component.StateOK, CTime: time.Now()})
		time.Sleep(5 * time.Millisecond)
		c.Deliver(component.Heartbeat{ID: "walk-in", State: component.StateDone, CTime: time.Now()})
	}()

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run with freeform admission: %v", err)
	}
}

func TestControllerDuplicateRegistration(t *testing.T) {
	c := testController(false)
	if err := c.Register(&fakeComponent{id: "src-a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register(&fakeComponent{id: "src-a"}); !errors.Is(err, ErrDuplicateComponent) {
		t.Fatalf("second Register err = %v, want ErrDuplicateComponent", err)
	}
}

func TestControllerContextCancel(t *testing.T) {
	c := testController(false)
	wedged := &fakeComponent{id: "stuck-a", wedge: make(chan struct{})}
	if err := c.Register(wedged); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}
