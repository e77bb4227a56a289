// Package forward delivers identifiers to destination channels with bounded
// retries.
package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
	"solana-trend-monitor/internal/schedule"
)

// Default configuration values.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// ErrEmptyIdentifier is returned in a Result when there is nothing to send.
var ErrEmptyIdentifier = errors.New("empty identifier")

// Sender is an outbound messaging session. Implementations must be safe for
// concurrent use.
type Sender interface {
	Connected() bool
	Connect(ctx context.Context) error
	Send(ctx context.Context, destination, text string) error
}

// Notifier is told about successful deliveries.
type Notifier interface {
	Notify(identifier, destination string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(identifier, destination string) error

// Notify calls f.
func (f NotifierFunc) Notify(identifier, destination string) error {
	return f(identifier, destination)
}

// BellNotifier rings the terminal bell.
type BellNotifier struct {
	W io.Writer
}

// Notify writes BEL to W (stdout when nil).
func (b BellNotifier) Notify(_, _ string) error {
	w := b.W
	if w == nil {
		w = os.Stdout
	}
	_, err := io.WriteString(w, "\a")
	return err
}

// Config holds retry settings.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Result is the outcome of one Forward call.
type Result struct {
	Identifier  string
	Destination string
	Delivered   bool
	Attempts    int
	Err         error // last error when not delivered
}

// Forwarder sends identifiers through a Sender.
type Forwarder struct {
	sender   Sender
	notifier Notifier
	cfg      Config
	sleep    schedule.SleepFunc
	log      *logger.Entry
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithNotifier sets the success notifier. nil disables notification.
func WithNotifier(n Notifier) Option {
	return func(f *Forwarder) {
		f.notifier = n
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep schedule.SleepFunc) Option {
	return func(f *Forwarder) {
		f.sleep = sleep
	}
}

// WithLogger sets the log entry.
func WithLogger(log *logger.Entry) Option {
	return func(f *Forwarder) {
		f.log = log
	}
}

// New creates a Forwarder. A non-positive MaxAttempts or negative RetryDelay
// falls back to the default.
func New(sender Sender, cfg Config, opts ...Option) *Forwarder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	f := &Forwarder{
		sender:   sender,
		notifier: BellNotifier{},
		cfg:      cfg,
		sleep:    schedule.Sleep,
		log:      logger.Discard().WithComponent("forward"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward delivers identifier to destination. It never panics and reports
// failure through the Result.
func (f *Forwarder) Forward(ctx context.Context, identifier, destination string) Result {
	res := Result{Identifier: identifier, Destination: destination}
	log := f.log.WithFields(logger.Fields{"identifier": identifier, "destination": destination})

	if identifier == "" {
		res.Err = ErrEmptyIdentifier
		log.Error("refusing to forward empty identifier")
		observability.RecordForwardResult(destination, false)
		return res
	}

	attempt := func(ctx context.Context) error {
		res.Attempts++
		err := f.attempt(ctx, identifier, destination)
		observability.RecordForwardAttempt(err == nil)
		return err
	}

	seq := schedule.New(schedule.UntilSuccess, f.sleep)
	seq.OnFailure = func(se *schedule.StepError) {
		log.WithError(se.Err).
			WithField("attempt", se.Index+1).
			WithField("max_attempts", f.cfg.MaxAttempts).
			Warn("forward attempt failed")
	}

	out, err := seq.Run(ctx, schedule.Retry(f.cfg.MaxAttempts, f.cfg.RetryDelay, attempt))
	switch {
	case out.Succeeded > 0:
		res.Delivered = true
	case err != nil:
		res.Err = err
	case len(out.Failures) > 0:
		res.Err = out.Failures[len(out.Failures)-1].Err
	}
	observability.RecordForwardResult(destination, res.Delivered)

	if !res.Delivered {
		log.WithError(res.Err).WithField("attempts", res.Attempts).Error("forward failed")
		return res
	}

	log.WithField("attempts", res.Attempts).Info("forwarded")
	if f.notifier != nil {
		if err := f.notifier.Notify(identifier, destination); err != nil {
			log.WithError(err).Warn("notify failed")
		}
	}
	return res
}

// attempt connects if needed and sends once.
func (f *Forwarder) attempt(ctx context.Context, identifier, destination string) error {
	if !f.sender.Connected() {
		if err := f.sender.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}
	if err := f.sender.Send(ctx, destination, identifier); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
