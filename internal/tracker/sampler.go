// Package tracker measures identifier prices at fixed offsets after
// detection and records the movement against the detection baseline.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
	"solana-trend-monitor/internal/schedule"
	"solana-trend-monitor/internal/storage"
)

// errUnknownQuote marks an offset whose oracle answer was unknown.
var errUnknownQuote = errors.New("unknown quote")

// Quoter returns a quote, zero when unknown. oracle.Client implements it.
type Quoter interface {
	Quote(ctx context.Context, identifier string) domain.Quote
}

// Sampler executes the measurement protocol of one run.
type Sampler struct {
	quoter  Quoter
	store   storage.TrackingStore
	samples storage.PriceSampleStore // optional analytic log
	offsets []domain.Offset
	loc     *time.Location
	sleep   schedule.SleepFunc
	now     func() time.Time
	log     *logger.Entry
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSampleLog appends every measurement to an analytic log.
func WithSampleLog(store storage.PriceSampleStore) SamplerOption {
	return func(s *Sampler) {
		s.samples = store
	}
}

// WithLocation sets the location of the detection date and time columns.
func WithLocation(loc *time.Location) SamplerOption {
	return func(s *Sampler) {
		s.loc = loc
	}
}

// WithSleep replaces the wait between offsets.
func WithSleep(sleep schedule.SleepFunc) SamplerOption {
	return func(s *Sampler) {
		s.sleep = sleep
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) {
		s.now = now
	}
}

// WithLogger sets the log entry.
func WithLogger(log *logger.Entry) SamplerOption {
	return func(s *Sampler) {
		s.log = log
	}
}

// NewSampler creates a Sampler. Empty offsets use domain.DefaultOffsets.
func NewSampler(quoter Quoter, store storage.TrackingStore, offsets []domain.Offset, opts ...SamplerOption) *Sampler {
	if len(offsets) == 0 {
		offsets = domain.DefaultOffsets
	}
	s := &Sampler{
		quoter:  quoter,
		store:   store,
		offsets: offsets,
		loc:     time.Local,
		sleep:   schedule.Sleep,
		now:     time.Now,
		log:     logger.Discard().WithComponent("tracker"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Offsets returns the configured offsets.
func (s *Sampler) Offsets() []domain.Offset {
	return s.offsets
}

// Sample runs the protocol for run: baseline, record creation, then one
// measurement per offset. It returns an error only when the record could
// not be created or ctx ended; offset failures are recorded on the run.
func (s *Sampler) Sample(ctx context.Context, run *Run) error {
	log := s.log.WithFields(logger.Fields{"identifier": run.Identifier, "run_id": run.ID.String()})
	run.setState(StateCreated)

	baseline := s.quoter.Quote(ctx, run.Identifier)
	record := domain.NewTrackingRecord(run.Identifier, run.DetectedAt, s.loc, baseline)
	record.CreatedAt = s.now().UnixMilli()

	recordID, err := s.store.Create(ctx, record)
	if err != nil {
		observability.RecordStoreError("create")
		log.WithError(err).Error("create tracking record failed")
		return fmt.Errorf("create tracking record: %w", err)
	}
	run.recordID.Store(recordID)
	log = log.WithField("record_id", recordID)
	log.WithFields(logger.Fields{
		"price":      baseline.Price,
		"market_cap": baseline.MarketCap,
	}).Info("tracking started")

	s.appendLog(ctx, log, &domain.PriceSample{
		RecordID:   recordID,
		Identifier: run.Identifier,
		Offset:     domain.BaselineOffset,
		Price:      baseline.Price,
		MarketCap:  baseline.MarketCap,
		SampledAt:  record.CreatedAt,
	})

	offsets := make([]schedule.Offset, len(s.offsets))
	for i, o := range s.offsets {
		offsets[i] = schedule.Offset{Name: o.Name, After: o.After}
	}
	steps := schedule.AtOffsets(offsets, func(ctx context.Context, name string) error {
		return s.measure(ctx, log, run, recordID, baseline.Price, name)
	})

	seq := schedule.New(schedule.Exhaust, s.sleep)
	seq.OnFailure = func(se *schedule.StepError) {
		run.markFailed(se.Step)
		observability.RecordOffsetSample(se.Step, false)
	}

	out, err := seq.Run(ctx, steps)
	if err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"measured": out.Succeeded,
		"failed":   len(out.Failures),
	}).Info("tracking finished")
	return nil
}

// measure queries the oracle for one offset and stores the result.
func (s *Sampler) measure(ctx context.Context, log *logger.Entry, run *Run, recordID int64, baseline float64, name string) error {
	run.offset.Store(name)
	run.setState(StateSampling)
	log = log.WithField("offset", name)

	q := s.quoter.Quote(ctx, run.Identifier)
	if !q.Known() {
		log.Warn("price unknown at offset")
		return errUnknownQuote
	}

	sample := domain.OffsetSample{
		Offset:    name,
		Price:     q.Price,
		GainPct:   domain.Gain(baseline, q.Price),
		SampledAt: s.now().UnixMilli(),
	}
	if err := s.store.UpdateOffset(ctx, recordID, sample); err != nil {
		observability.RecordStoreError("update_offset")
		log.WithError(err).Error("store offset failed")
		return fmt.Errorf("update offset: %w", err)
	}
	observability.RecordOffsetSample(name, true)
	log.WithFields(logger.Fields{"price": sample.Price, "gain_pct": sample.GainPct}).Info("offset sampled")

	s.appendLog(ctx, log, &domain.PriceSample{
		RecordID:   recordID,
		Identifier: run.Identifier,
		Offset:     name,
		Price:      q.Price,
		MarketCap:  q.MarketCap,
		GainPct:    sample.GainPct,
		SampledAt:  sample.SampledAt,
	})
	return nil
}

// appendLog writes to the analytic log; failures are only logged.
func (s *Sampler) appendLog(ctx context.Context, log *logger.Entry, sample *domain.PriceSample) {
	if s.samples == nil {
		return
	}
	if err := s.samples.InsertBulk(ctx, []*domain.PriceSample{sample}); err != nil {
		observability.RecordSampleLogError()
		log.WithError(err).Warn("append price sample failed")
	}
}
