package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
)

const (
	// DefaultMaxConcurrentRuns bounds simultaneously executing runs.
	DefaultMaxConcurrentRuns = 1000
	// DefaultQueueWarnAfter is the pool wait after which a run is logged as
	// delayed. A delayed run measures its offsets late.
	DefaultQueueWarnAfter = time.Second
)

// Registry owns sampling runs. Runs execute on a worker pool under a context
// that is independent of the caller's, so stopping message intake does not
// stop measurements.
type Registry struct {
	sampler *Sampler
	pool    pond.Pool
	runs    *xsync.Map[uuid.UUID, *Run]
	wg      sync.WaitGroup

	queueWarnAfter time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Entry
}

// NewRegistry creates a Registry. A non-positive maxConcurrent uses
// DefaultMaxConcurrentRuns.
func NewRegistry(sampler *Sampler, maxConcurrent int, log *logger.Entry) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if log == nil {
		log = logger.Discard().WithComponent("tracker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		sampler: sampler,
		pool:    pond.NewPool(maxConcurrent),
		runs:    xsync.NewMap[uuid.UUID, *Run](),

		queueWarnAfter: DefaultQueueWarnAfter,

		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Start schedules a run for identifier and returns its handle immediately.
func (r *Registry) Start(identifier string, detectedAt time.Time) *Run {
	run := newRun(identifier, detectedAt)
	if err := r.ctx.Err(); err != nil {
		run.finish(StateAborted, err)
		return run
	}
	run.queuedAt = time.Now()
	r.runs.Store(run.ID, run)
	r.wg.Add(1)
	observability.RecordRunStarted()

	r.pool.Submit(func() {
		defer r.wg.Done()
		defer r.runs.Delete(run.ID)
		r.execute(run)
	})
	return run
}

// execute runs the sampler and settles the run's final state.
func (r *Registry) execute(run *Run) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logger.Fields{"identifier": run.Identifier, "panic": p}).Error("sampling run panicked")
			observability.RecordRunFinished(StateAborted.String())
			run.finish(StateAborted, errors.New("sampling run panicked"))
		}
	}()

	if waited := time.Since(run.queuedAt); waited > r.queueWarnAfter {
		r.log.WithFields(logger.Fields{
			"identifier": run.Identifier,
			"run_id":     run.ID.String(),
			"queued_for": waited.String(),
		}).Warn("sampling run waited for a free worker")
	}
	if err := r.ctx.Err(); err != nil {
		observability.RecordRunFinished(StateAborted.String())
		run.finish(StateAborted, err)
		return
	}

	err := r.sampler.Sample(r.ctx, run)
	state := StateDone
	if err != nil {
		state = StateAborted
	}
	observability.RecordRunFinished(state.String())
	run.finish(state, err)
}

// Active returns the number of unfinished runs.
func (r *Registry) Active() int {
	return r.runs.Size()
}

// Runs returns the handles of unfinished runs.
func (r *Registry) Runs() []*Run {
	out := make([]*Run, 0, r.runs.Size())
	r.runs.Range(func(_ uuid.UUID, run *Run) bool {
		out = append(out, run)
		return true
	})
	return out
}

// Drain waits until every run has finished or ctx ends.
func (r *Registry) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abandon cancels all runs and stops the pool. Runs waiting for an offset
// end as aborted.
func (r *Registry) Abandon() {
	active := r.Active()
	r.cancel()
	r.pool.StopAndWait()
	if active > 0 {
		r.log.WithField("runs", active).Warn("abandoned sampling runs")
	}
}
