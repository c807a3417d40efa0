package hxhydrate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pthm/hxhydrate/lib/logging"
)

// Marker attributes written on activated elements.
const (
	AttrHydrating      = "data-fluent-hydrating"
	AttrHydrated       = "data-fluent-hydrated"
	AttrHydratedAt     = "data-fluent-hydrated-at"
	AttrHydrationTime  = "data-fluent-hydration-time"
	AttrHydrationError = "data-fluent-hydration-error"
)

// Events dispatched by the scheduler.
const (
	// EventElementHydrated bubbles from each activated element with
	// detail {"tag", "duration"}.
	EventElementHydrated = "fluent-element-hydrated"
	// EventHydrationComplete fires on the window once a tag is hydrated,
	// with detail {"tag", "strategy"}.
	EventHydrationComplete = "fluent-hydration-complete"
)

// IsHydrated reports whether el carries the hydrated marker.
func IsHydrated(el Element) bool {
	_, ok := el.Attr(AttrHydrated)
	return ok
}

// targets returns the elements of tag that still need activation, in
// document order, scoped by cfg.Components.
func (m *Manager) targets(tag string, cfg Config) ([]Element, error) {
	if m.env.Document == nil {
		return nil, ErrNoDocument
	}
	all, err := m.env.Document.QueryAll(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: selector %q: %v", ErrInvalidConfig, tag, err)
	}

	out := all[:0]
	for _, el := range all {
		if IsHydrated(el) {
			continue
		}
		ok, err := inScope(el, cfg.Components)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

func inScope(el Element, selectors []string) (bool, error) {
	if len(selectors) == 0 {
		return true, nil
	}
	for _, sel := range selectors {
		ok, err := el.Matches(sel)
		if err != nil {
			return false, fmt.Errorf("%w: component selector %q: %v", ErrInvalidConfig, sel, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// hydrateElement activates one element. Elements that are already marked
// hydrated, or claimed by another activation of the same manager, are
// skipped.
func (m *Manager) hydrateElement(ctx context.Context, tag string, el Element, cfg Config) error {
	if IsHydrated(el) {
		return nil
	}
	if err := m.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.gate.Release(1)

	if IsHydrated(el) || !m.claim(el) {
		return nil
	}
	defer m.unclaim(el)

	start := time.Now()
	el.RemoveAttr(AttrHydrationError)
	el.SetAttr(AttrHydrating, "")

	if err := activate(ctx, el); err != nil {
		el.RemoveAttr(AttrHydrating)
		el.SetAttr(AttrHydrationError, err.Error())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &hookError{tag: tag, err: err}
	}

	elapsed := time.Since(start)
	el.RemoveAttr(AttrHydrating)
	el.SetAttr(AttrHydrated, "")
	el.SetAttr(AttrHydratedAt, strconv.FormatInt(time.Now().UnixMilli(), 10))
	el.SetAttr(AttrHydrationTime, strconv.FormatInt(elapsed.Milliseconds(), 10))
	m.recordElement(tag, elapsed)

	if cfg.Performance != nil && cfg.Performance.Budget > 0 && elapsed > cfg.Performance.Budget {
		m.log.Warn("activation over budget",
			logging.String("tag", tag),
			logging.Duration("elapsed", elapsed),
			logging.Duration("budget", cfg.Performance.Budget))
	}

	el.Dispatch(EventElementHydrated, map[string]any{
		"tag":      tag,
		"duration": elapsed,
	})
	return nil
}

// activate runs the component hooks attached to el.
func activate(ctx context.Context, el Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	c := el.Component()
	if h, ok := c.(Hydrater); ok {
		if err := h.Hydrate(ctx); err != nil {
			return err
		}
	}
	if cn, ok := c.(Connector); ok && !cn.IsConnected() {
		cn.Connect()
	}
	if ls, ok := c.(ListenerSetup); ok {
		ls.SetupEventListeners()
	}
	return nil
}

// claim marks el as being activated. It reports false if another
// activation holds it. The first claim also counts el in the totals.
func (m *Manager) claim(el Element) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.claimed[el]; busy {
		return false
	}
	m.claimed[el] = struct{}{}
	if _, seen := m.counted[el]; !seen {
		m.counted[el] = struct{}{}
		m.metrics.TotalComponents++
	}
	return true
}

func (m *Manager) unclaim(el Element) {
	m.mu.Lock()
	delete(m.claimed, el)
	m.mu.Unlock()
}

func (m *Manager) recordElement(tag string, elapsed time.Duration) {
	m.mu.Lock()
	m.metrics.HydratedComponents++
	m.metrics.TotalHydrationTime += elapsed
	m.mu.Unlock()
	m.durations.record(measureName(tag), elapsed)
}
