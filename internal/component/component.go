// Package component defines the contract between pipeline stages and
// the controller that supervises them.
package component

import (
	"context"
	"time"
)

// Kind classifies a component's position in the pipeline.
type Kind string

// Component kinds.
const (
	KindSource  Kind = "SOURCE"
	KindConduit Kind = "CONDUIT"
	KindSink    Kind = "SINK"
)

// State is a component's self-reported condition.
type State string

// Component states.
const (
	StateOK        State = "OK"
	StateDone      State = "DONE"
	StateException State = "EXCEPTION"
)

// Component is a pipeline stage driven by the controller's runner.
// DoWork processes one unit of work (typically one channel operation)
// and reports the resulting state; it is called in a loop until it
// returns StateDone or StateException.
type Component interface {
	ID() string
	Kind() Kind
	Open(ctx context.Context) error
	DoWork(ctx context.Context) (State, error)
	Kill()
}

// Heartbeat is a component's message on the control channel: either a
// periodic liveness confirmation (StateOK echoing the controller's
// broadcast time) or a terminal DONE/EXCEPTION report.
type Heartbeat struct {
	ID    string
	State State
	CTime time.Time
	Err   error
}
