package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a sampling run.
type State int32

const (
	StateCreated State = iota
	StateSampling
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSampling:
		return "sampling"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Run is the handle of one sampling run.
type Run struct {
	ID         uuid.UUID
	Identifier string
	DetectedAt time.Time

	queuedAt time.Time // set by Registry.Start

	state    atomic.Int32
	recordID atomic.Int64
	offset   atomic.Value // string, offset currently being sampled

	mu     sync.Mutex
	failed []string
	err    error

	done chan struct{}
}

func newRun(identifier string, detectedAt time.Time) *Run {
	r := &Run{
		ID:         uuid.New(),
		Identifier: identifier,
		DetectedAt: detectedAt,
		done:       make(chan struct{}),
	}
	r.offset.Store("")
	return r
}

// State returns the current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Offset returns the offset being sampled while in StateSampling.
func (r *Run) Offset() string {
	return r.offset.Load().(string)
}

// RecordID returns the tracking record id, or 0 before it was created.
func (r *Run) RecordID() int64 {
	return r.recordID.Load()
}

// FailedOffsets lists offsets whose measurement was not stored.
func (r *Run) FailedOffsets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failed...)
}

// Err returns the error that aborted the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Run) markFailed(offset string) {
	r.mu.Lock()
	r.failed = append(r.failed, offset)
	r.mu.Unlock()
}

func (r *Run) finish(s State, err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.setState(s)
	close(r.done)
}
