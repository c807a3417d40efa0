package hxhydrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pthm/hxhydrate/lib/logging"
)

// run drives one activation from first attempt to terminal status.
func (m *Manager) run(ctx context.Context, a *Activation, cfg Config) {
	defer m.wg.Done()
	defer a.cancel()

	start := time.Now()
	attempts, err := m.retry(ctx, a, cfg)
	m.complete(a, cfg, start, attempts, err)
}

// retry runs the strategy until it succeeds, fails with a non-retryable
// error, or exhausts the retry limit. Retry n waits
// RetryBaseDelay*2^(n-1), capped at maxRetryDelay.
func (m *Manager) retry(ctx context.Context, a *Activation, cfg Config) (int, error) {
	tag := a.tag
	for attempt := 1; ; attempt++ {
		if !m.transition(tag, StatusHydrating, attempt > 1) {
			return attempt, ErrCanceled
		}

		err := m.attempt(ctx, a, cfg)
		if err == nil {
			return attempt, nil
		}
		err = classify(ctx, err, m.isClosed(), cfg)
		m.setError(tag, err)

		retries := attempt - 1
		if !IsRetryable(err) || retries >= cfg.Retries {
			return attempt, err
		}

		delay := backoff(m.opts.RetryBaseDelay, retries)
		m.log.Warn("activation failed, retrying",
			logging.String("tag", tag),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Err(err))

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return attempt, classify(ctx, ctx.Err(), m.isClosed(), cfg)
		}
		m.countRetry(tag)
	}
}

// attempt runs the strategy executor once.
func (m *Manager) attempt(ctx context.Context, a *Activation, cfg Config) error {
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	exec, ok := executors[cfg.Strategy]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	return exec(ctx, &execution{m: m, tag: a.tag, cfg: cfg, act: a})
}

// classify maps context errors onto the package sentinels.
func classify(ctx context.Context, err error, closed bool, cfg Config) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, cfg.Timeout)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		if closed {
			return ErrClosed
		}
		return ErrCanceled
	}
	return err
}

// complete records the terminal status and resolves the activation.
func (m *Manager) complete(a *Activation, cfg Config, start time.Time, attempts int, err error) {
	tag := a.tag
	elapsed := time.Since(start)
	status := StatusHydrated

	if err != nil {
		status = StatusError
		err = &HydrationError{Kind: kindOf(err), Tag: tag, Strategy: cfg.Strategy, Attempt: attempts, Err: err}
	}

	m.mu.Lock()
	if m.pending[tag] == a {
		delete(m.pending, tag)
	}
	if st, ok := m.states[tag]; ok {
		st.EndTime = time.Now()
		st.Duration = elapsed
		if err == nil {
			if canTransition(st.Status, StatusHydrated, false) {
				st.Status = StatusHydrated
			}
		} else {
			st.Status = StatusError
			st.err = err
			st.Error = err.Error()
			m.metrics.FailedComponents++
		}
	}
	m.mu.Unlock()

	if err == nil {
		m.log.Info("component hydrated",
			logging.String("tag", tag),
			logging.String("strategy", string(cfg.Strategy)),
			logging.Duration("elapsed", elapsed))
		if m.env.Window != nil {
			m.env.Window.Dispatch(EventHydrationComplete, map[string]any{
				"tag":      tag,
				"strategy": string(cfg.Strategy),
			})
		}
	} else {
		m.log.Error("component hydration failed", err,
			logging.String("tag", tag),
			logging.String("strategy", string(cfg.Strategy)),
			logging.Int("attempts", attempts))
	}

	if cfg.Analytics && m.opts.Analytics != nil {
		m.opts.Analytics.Track(AnalyticsEvent{
			Manager:  m.id,
			Tag:      tag,
			Strategy: cfg.Strategy,
			Status:   status,
			Attempts: attempts,
			Duration: elapsed,
			Err:      err,
		})
	}

	a.finish(status, err)
}

func (m *Manager) setError(tag string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[tag]; ok && canTransition(st.Status, StatusError, false) {
		st.Status = StatusError
		st.err = err
		st.Error = err.Error()
	}
}

func (m *Manager) countRetry(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[tag]; ok {
		st.RetryCount++
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// maxRetryDelay caps a single backoff.
const maxRetryDelay = 5 * time.Minute

// backoff returns base*2^retries, capped at maxRetryDelay.
func backoff(base time.Duration, retries int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := min(base, maxRetryDelay)
	for range retries {
		if d >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		d *= 2
	}
	return d
}
