package hxhydrate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// cpuIdleSlack is the idle time the cpu strategy must exceed.
const cpuIdleSlack = 10 * time.Millisecond

// interactionEvents are the user events that trigger the interaction
// strategy.
var interactionEvents = []string{"click", "focus", "pointerenter", "touchstart", "keydown"}

// executor waits for a strategy's trigger and activates the tag's
// elements.
type executor func(ctx context.Context, x *execution) error

var executors = map[Strategy]executor{
	StrategyImmediate:   runImmediate,
	StrategyLazy:        runLazy,
	StrategyViewport:    runViewport,
	StrategyInteraction: runInteraction,
	StrategyMediaQuery:  runMediaQuery,
	StrategyNetwork:     runNetwork,
	StrategyCPU:         runCPU,
	StrategyCustom:      runCustom,
}

// execution is one strategy attempt for one tag.
type execution struct {
	m   *Manager
	tag string
	cfg Config
	act *Activation
}

func (x *execution) forced() <-chan struct{} { return x.act.forced }

func (x *execution) targets() ([]Element, error) {
	return x.m.targets(x.tag, x.cfg)
}

// activateAll activates every current target in document order and stops
// at the first failure.
func (x *execution) activateAll(ctx context.Context) error {
	els, err := x.targets()
	if err != nil {
		return err
	}
	for _, el := range els {
		if err := x.m.hydrateElement(ctx, x.tag, el, x.cfg); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) activate(ctx context.Context, el Element) error {
	return x.m.hydrateElement(ctx, x.tag, el, x.cfg)
}

// sleep waits for d, an escalation, or ctx.
func (x *execution) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-x.forced():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitIdle waits for an idle callback reporting at least slack, or more
// than slack when strict is set. Without an idle scheduler it falls back
// to a fixed delay.
func (x *execution) waitIdle(ctx context.Context, slack time.Duration, strict bool) error {
	idle := x.m.env.Idle
	if idle == nil {
		return x.sleep(ctx, x.m.opts.LazyFallbackDelay)
	}

	fired := make(chan time.Duration, 1)
	for {
		cancel := idle.RequestIdle(func(remaining time.Duration) {
			select {
			case fired <- remaining:
			default:
			}
		})
		select {
		case remaining := <-fired:
			if remaining > slack || (!strict && remaining == slack) {
				return nil
			}
		case <-x.forced():
			cancel()
			return nil
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		}
	}
}

func runImmediate(ctx context.Context, x *execution) error {
	return x.activateAll(ctx)
}

func runLazy(ctx context.Context, x *execution) error {
	if err := x.waitIdle(ctx, x.cfg.minIdleSlack(), false); err != nil {
		return err
	}
	return x.activateAll(ctx)
}

func runCPU(ctx context.Context, x *execution) error {
	if err := x.waitIdle(ctx, cpuIdleSlack, true); err != nil {
		return err
	}
	return x.activateAll(ctx)
}

func runViewport(ctx context.Context, x *execution) error {
	els, err := x.targets()
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return nil
	}
	if x.m.env.Visibility == nil {
		return x.activateAll(ctx)
	}
	return x.m.bridge.awaitVisible(ctx, x.tag, els, x.forced(), x.activate)
}

func runInteraction(ctx context.Context, x *execution) error {
	els, err := x.targets()
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	hits := make(chan Element)

	var mu sync.Mutex
	removers := make(map[Element][]func(), len(els))
	detach := func(el Element) {
		mu.Lock()
		fns := removers[el]
		delete(removers, el)
		mu.Unlock()
		for _, rm := range fns {
			rm()
		}
	}
	defer func() {
		mu.Lock()
		rest := make([]Element, 0, len(removers))
		for el := range removers {
			rest = append(rest, el)
		}
		mu.Unlock()
		for _, el := range rest {
			detach(el)
		}
	}()

	for _, el := range els {
		el := el
		var once sync.Once
		fire := func() {
			once.Do(func() {
				go func() {
					select {
					case hits <- el:
					case <-done:
					}
				}()
			})
		}
		fns := make([]func(), 0, len(interactionEvents))
		for _, ev := range interactionEvents {
			fns = append(fns, el.Listen(ev, fire))
		}
		mu.Lock()
		removers[el] = fns
		mu.Unlock()
	}

	remaining := len(els)
	for remaining > 0 {
		select {
		case el := <-hits:
			detach(el)
			remaining--
			if err := x.activate(ctx, el); err != nil {
				return err
			}
		case <-x.forced():
			return x.activateAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func runMediaQuery(ctx context.Context, x *execution) error {
	query := x.cfg.Conditions.MediaQuery
	media := x.m.env.Media
	if media == nil {
		return x.activateAll(ctx)
	}

	matched := make(chan struct{}, 1)
	stop := media.WatchMedia(query, func(ok bool) {
		if !ok {
			return
		}
		select {
		case matched <- struct{}{}:
		default:
		}
	})
	defer stop()

	if !media.Matches(query) {
		select {
		case <-matched:
		case <-x.forced():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return x.activateAll(ctx)
}

func runNetwork(ctx context.Context, x *execution) error {
	want := x.cfg.Conditions.NetworkType
	info := x.m.env.Network
	ready := func() bool {
		t, ok := info.EffectiveType()
		return !ok || t == want
	}
	if info == nil || ready() {
		return x.activateAll(ctx)
	}

	ticker := time.NewTicker(x.m.opts.NetworkPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if ready() {
				return x.activateAll(ctx)
			}
		case <-x.forced():
			return x.activateAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runCustom(context.Context, *execution) error {
	return fmt.Errorf("%w: %s", ErrUnimplementedStrategy, StrategyCustom)
}
