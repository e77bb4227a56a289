// Package dispatch turns inbound chat messages into forwards and sampling
// runs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"solana-trend-monitor/internal/dedup"
	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/forward"
	"solana-trend-monitor/internal/identifier"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
	"solana-trend-monitor/internal/schedule"
	"solana-trend-monitor/internal/tracker"
)

// ErrPanic wraps a panic recovered while handling a message.
var ErrPanic = errors.New("dispatch panic")

// Source produces inbound messages. The channel is closed when the source
// stops.
type Source interface {
	Messages(ctx context.Context) (<-chan domain.Message, error)
}

// Forwarder delivers one identifier to one destination.
type Forwarder interface {
	Forward(ctx context.Context, identifier, destination string) forward.Result
}

// Tracker starts a background sampling run.
type Tracker interface {
	Start(identifier string, detectedAt time.Time) *tracker.Run
}

// Config holds dispatch settings.
type Config struct {
	Destinations []string
	// SendDelay pauses after each candidate that was forwarded anywhere.
	SendDelay time.Duration
}

// Summary describes what handling one message did.
type Summary struct {
	Candidates int // distinct candidates extracted
	Invalid    int // rejected by the validator
	Tracked    int // sampling runs started
	Skipped    int // (candidate, destination) pairs already forwarded
	Delivered  int // successful forwards
	Failed     int // forwards that exhausted their attempts
}

// Dispatcher is the per-message orchestrator.
type Dispatcher struct {
	cfg       Config
	cache     dedup.Cache
	forwarder Forwarder
	tracker   Tracker
	sleep     schedule.SleepFunc
	now       func() time.Time
	log       *logger.Entry
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the inter-send wait.
func WithSleep(sleep schedule.SleepFunc) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

// WithClock replaces time.Now for messages without a receive time.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithLogger sets the log entry.
func WithLogger(log *logger.Entry) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// New creates a Dispatcher.
func New(cfg Config, cache dedup.Cache, forwarder Forwarder, tracker Tracker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		cache:     cache,
		forwarder: forwarder,
		tracker:   tracker,
		sleep:     schedule.Sleep,
		now:       time.Now,
		log:       logger.Discard().WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run handles messages from source until ctx ends or the source closes.
// A panic while handling a message stops the loop and is returned as an
// error wrapping ErrPanic.
func (d *Dispatcher) Run(ctx context.Context, source Source) error {
	msgs, err := source.Messages(ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	d.log.WithField("destinations", len(d.cfg.Destinations)).Info("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatch loop stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				d.log.Info("source closed")
				return nil
			}
			if _, err := d.HandleMessage(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// HandleMessage processes one message. The only error it returns is a
// recovered panic.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg domain.Message) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			observability.RecordDispatchPanic()
			d.log.WithFields(logger.Fields{
				"origin": msg.Origin,
				"panic":  p,
				"stack":  string(debug.Stack()),
			}).Error("recovered panic while handling message")
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
		observability.RecordDispatch(time.Since(start).Seconds())
	}()

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = d.now()
	}
	observability.RecordMessage(float64(receivedAt.Unix()))
	log := d.log.WithField("origin", msg.Origin)
	log.WithField("text", msg.Text).Debug("message received")

	// Extract collapses candidates matched by several patterns, so each
	// candidate is processed once per message.
	for _, m := range identifier.Extract(msg.Text) {
		sum.Candidates++
		observability.RecordCandidate(identifier.PatternName(m.Pattern))

		clog := log.WithField("identifier", m.Candidate)
		if !identifier.Valid(m.Candidate) {
			sum.Invalid++
			observability.RecordInvalidCandidate()
			clog.Debug("invalid candidate")
			continue
		}
		if shape := identifier.Classify(m.Candidate); !shape.LikelyAddress() {
			clog.WithField("pattern", identifier.PatternName(m.Pattern)).Debug("candidate is not a base58 public key, possible false positive")
		}

		d.tracker.Start(m.Candidate, receivedAt)
		sum.Tracked++

		if !d.dispatch(ctx, clog, m.Candidate, &sum) {
			continue
		}
		if d.cfg.SendDelay > 0 && d.sleep(ctx, d.cfg.SendDelay) != nil {
			// stopping; later candidates are dropped with the message
			return sum, nil
		}
	}

	return sum, nil
}

// dispatch forwards candidate to every destination it has not been sent to
// yet. It reports whether any forward was attempted.
func (d *Dispatcher) dispatch(ctx context.Context, log *logger.Entry, candidate string, sum *Summary) bool {
	var pending []string
	for _, dest := range d.cfg.Destinations {
		exists, err := d.cache.Exists(ctx, candidate, dest)
		if err != nil {
			log.WithError(err).WithField("destination", dest).Warn("dedup lookup failed, forwarding anyway")
		}
		if exists {
			sum.Skipped++
			observability.RecordDedupHit()
			log.WithField("destination", dest).Info("already forwarded")
			continue
		}
		pending = append(pending, dest)
	}
	if len(pending) == 0 {
		return false
	}

	// Forwards outlive a stopping dispatch loop.
	fwdCtx := context.WithoutCancel(ctx)
	results := make([]forward.Result, len(pending))
	var wg sync.WaitGroup
	for i, dest := range pending {
		wg.Add(1)
		go func(i int, dest string) {
			defer wg.Done()
			results[i] = d.forwarder.Forward(fwdCtx, candidate, dest)
		}(i, dest)
	}
	wg.Wait()

	for i, res := range results {
		if !res.Delivered {
			sum.Failed++
			continue
		}
		sum.Delivered++
		if err := d.cache.Add(fwdCtx, candidate, pending[i]); err != nil {
			log.WithError(err).WithField("destination", pending[i]).Warn("dedup add failed")
		}
	}
	return true
}
