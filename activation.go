package hxhydrate

import (
	"context"
	"sync"
)

// Activation is the handle to one in-flight or completed activation of a
// tag. Concurrent requests for the same tag share one Activation.
type Activation struct {
	tag      string
	strategy Strategy

	done   chan struct{}
	err    error
	status Status

	cancel context.CancelFunc

	forceOnce sync.Once
	forced    chan struct{}
}

func newActivation(tag string, strategy Strategy) *Activation {
	return &Activation{
		tag:      tag,
		strategy: strategy,
		done:     make(chan struct{}),
		forced:   make(chan struct{}),
		cancel:   func() {},
	}
}

// resolved returns an already completed activation.
func resolved(tag string, strategy Strategy, status Status, err error) *Activation {
	a := newActivation(tag, strategy)
	a.finish(status, err)
	return a
}

// Tag returns the tag being activated.
func (a *Activation) Tag() string { return a.tag }

// Strategy returns the strategy the activation runs.
func (a *Activation) Strategy() Strategy { return a.strategy }

// Done is closed when the activation completes.
func (a *Activation) Done() <-chan struct{} { return a.done }

// Wait blocks until the activation completes or ctx is done. A deferred
// activation (conditions unmet) completes with a nil error and
// StatusPending.
func (a *Activation) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error. It is only meaningful after Done.
func (a *Activation) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Status returns the status the tag was left in, or StatusPending while
// the activation is running.
func (a *Activation) Status() Status {
	select {
	case <-a.done:
		return a.status
	default:
		return StatusPending
	}
}

// Deferred reports whether the activation completed without running
// because its conditions were unmet.
func (a *Activation) Deferred() bool {
	return a.Status() == StatusPending && a.Err() == nil && a.isDone()
}

// Cancel stops the activation. Waits are released and the tag fails with
// ErrCanceled unless it already completed.
func (a *Activation) Cancel() {
	a.cancel()
}

// force makes a waiting strategy activate its remaining elements now.
func (a *Activation) force() {
	a.forceOnce.Do(func() { close(a.forced) })
}

func (a *Activation) isDone() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Activation) finish(status Status, err error) {
	a.status = status
	a.err = err
	close(a.done)
}
