// Package schedule runs ordered sequences of delayed steps.
//
// A retry loop with a fixed delay and a series of measurements at increasing
// offsets are both sequences of (delay, action) pairs. They differ only in
// when the sequence stops, which is selected by a Policy.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Step is one delayed action.
type Step struct {
	Name   string
	Delay  time.Duration // waited before Action runs
	Action func(ctx context.Context) error
}

// Policy decides when a sequence stops.
type Policy int

const (
	// UntilSuccess stops at the first step that returns nil.
	UntilSuccess Policy = iota
	// Exhaust runs every step regardless of step errors.
	Exhaust
)

// StepError records a failed step.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Outcome summarizes a sequence run.
type Outcome struct {
	Executed  int          // steps whose action ran
	Succeeded int          // steps whose action returned nil
	Failures  []*StepError // failed steps in order
}

// Err returns the joined step failures, or nil.
func (o Outcome) Err() error {
	if len(o.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(o.Failures))
	for i, f := range o.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Sequence executes steps with a SleepFunc.
type Sequence struct {
	sleep  SleepFunc
	policy Policy
	// OnFailure, if set, is called after each failed step.
	OnFailure func(*StepError)
}

// New creates a Sequence. A nil sleep uses Sleep.
func New(policy Policy, sleep SleepFunc) *Sequence {
	if sleep == nil {
		sleep = Sleep
	}
	return &Sequence{sleep: sleep, policy: policy}
}

// Run executes steps in order. It returns early if ctx ends during a wait;
// the returned error is then ctx.Err() and the outcome covers the steps
// already executed.
func (s *Sequence) Run(ctx context.Context, steps []Step) (Outcome, error) {
	var out Outcome

	for i, step := range steps {
		if step.Delay > 0 {
			if err := s.sleep(ctx, step.Delay); err != nil {
				return out, err
			}
		}

		out.Executed++
		err := step.Action(ctx)
		if err == nil {
			out.Succeeded++
			if s.policy == UntilSuccess {
				return out, nil
			}
			continue
		}

		failure := &StepError{Step: step.Name, Index: i, Err: err}
		out.Failures = append(out.Failures, failure)
		if s.OnFailure != nil {
			s.OnFailure(failure)
		}
	}

	return out, nil
}

// Retry builds attempts steps that run action, the first immediately and the
// rest after delay.
func Retry(attempts int, delay time.Duration, action func(ctx context.Context) error) []Step {
	steps := make([]Step, attempts)
	for i := range steps {
		d := delay
		if i == 0 {
			d = 0
		}
		steps[i] = Step{
			Name:   fmt.Sprintf("attempt %d/%d", i+1, attempts),
			Delay:  d,
			Action: action,
		}
	}
	return steps
}

// Offset is an absolute delay from a common start.
type Offset struct {
	Name  string
	After time.Duration
}

// AtOffsets builds steps that run at the given absolute offsets from the
// start of the sequence. Each step waits the gap to the previous offset.
// Offsets must be ascending.
func AtOffsets(offsets []Offset, action func(ctx context.Context, name string) error) []Step {
	steps := make([]Step, len(offsets))
	var prev time.Duration
	for i, o := range offsets {
		name := o.Name
		steps[i] = Step{
			Name:   name,
			Delay:  o.After - prev,
			Action: func(ctx context.Context) error { return action(ctx, name) },
		}
		prev = o.After
	}
	return steps
}
