package hxhydrate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pthm/hxhydrate/lib/logging"
)

// bridge connects environment observers to the manager: visibility
// observers for outstanding viewport waits and the insertion watcher that
// discovers new elements.
type bridge struct {
	m *Manager

	mu            sync.Mutex
	paused        bool
	closed        bool
	waits         map[*viewportWait]struct{}
	stopInsertion func()
	queue         []Element
	timer         *time.Timer
}

func newBridge(m *Manager) *bridge {
	return &bridge{m: m, waits: make(map[*viewportWait]struct{})}
}

// viewportWait is one set of elements waiting to become visible.
type viewportWait struct {
	tag  string
	hits chan Element
	done chan struct{}

	mu        sync.Mutex
	remaining map[Element]struct{}
	observer  VisibilityObserver
}

func (w *viewportWait) connect(src VisibilitySource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.observer != nil {
		return
	}
	w.observer = src.NewObserver(func(el Element, visible bool) {
		if !visible {
			return
		}
		go func() {
			select {
			case w.hits <- el:
			case <-w.done:
			}
		}()
	})
	for el := range w.remaining {
		w.observer.Observe(el)
	}
}

func (w *viewportWait) disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.observer != nil {
		w.observer.Disconnect()
		w.observer = nil
	}
}

// take removes el from the wait. It reports false if el was not waiting.
func (w *viewportWait) take(el Element) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.remaining[el]; !ok {
		return false
	}
	delete(w.remaining, el)
	if w.observer != nil {
		w.observer.Unobserve(el)
	}
	return true
}

func (w *viewportWait) rest() []Element {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Element, 0, len(w.remaining))
	for el := range w.remaining {
		out = append(out, el)
	}
	return out
}

func (w *viewportWait) empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.remaining) == 0
}

// awaitVisible activates each element of els as it becomes visible and
// returns once all are activated, an activation fails, or ctx is done. A
// signal on force activates the remaining elements at once.
func (b *bridge) awaitVisible(ctx context.Context, tag string, els []Element, force <-chan struct{}, activate func(context.Context, Element) error) error {
	w := &viewportWait{
		tag:       tag,
		hits:      make(chan Element),
		done:      make(chan struct{}),
		remaining: make(map[Element]struct{}, len(els)),
	}
	for _, el := range els {
		w.remaining[el] = struct{}{}
	}

	b.register(w)
	defer b.unregister(w)

	for !w.empty() {
		select {
		case el := <-w.hits:
			if !w.take(el) {
				continue
			}
			if err := activate(ctx, el); err != nil {
				return err
			}
		case <-force:
			for _, el := range w.rest() {
				w.take(el)
				if err := activate(ctx, el); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *bridge) register(w *viewportWait) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waits[w] = struct{}{}
	if !b.paused && !b.closed {
		w.connect(b.m.env.Visibility)
	}
}

func (b *bridge) unregister(w *viewportWait) {
	b.mu.Lock()
	delete(b.waits, w)
	b.mu.Unlock()
	w.disconnect()
	close(w.done)
}

// observing returns the number of connected viewport waits.
func (b *bridge) observing() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for w := range b.waits {
		w.mu.Lock()
		if w.observer != nil {
			n++
		}
		w.mu.Unlock()
	}
	return n
}

func (b *bridge) watchInsertions(doc Document) {
	b.stopInsertion = doc.ObserveInsertions(b.inserted)
}

// inserted queues new elements carrying the reserved prefix and arms the
// batch timer.
func (b *bridge) inserted(added []Element) {
	prefix := b.m.opts.ReservedPrefix

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, el := range added {
		if !strings.HasPrefix(strings.ToLower(el.TagName()), prefix) || IsHydrated(el) {
			continue
		}
		b.queue = append(b.queue, el)
	}
	b.armLocked()
}

func (b *bridge) armLocked() {
	if b.paused || b.closed || b.timer != nil || len(b.queue) == 0 {
		return
	}
	b.timer = time.AfterFunc(b.m.opts.DiscoveryDelay, b.flush)
}

// flush schedules the queued insertions grouped by tag.
func (b *bridge) flush() {
	b.mu.Lock()
	if b.closed || b.paused {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	queued := b.queue
	b.queue = nil
	b.timer = nil
	b.mu.Unlock()

	var order []string
	byTag := make(map[string][]Element)
	for _, el := range queued {
		tag := strings.ToLower(el.TagName())
		if _, ok := byTag[tag]; !ok {
			order = append(order, tag)
		}
		byTag[tag] = append(byTag[tag], el)
	}
	for _, tag := range order {
		b.m.discovered(tag, byTag[tag])
	}
}

func (b *bridge) pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
	for w := range b.waits {
		w.disconnect()
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *bridge) resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.paused = false
	if b.m.env.Visibility != nil {
		for w := range b.waits {
			w.connect(b.m.env.Visibility)
		}
	}
	b.armLocked()
}

func (b *bridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.stopInsertion != nil {
		b.stopInsertion()
		b.stopInsertion = nil
	}
	for w := range b.waits {
		w.disconnect()
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.queue = nil
}

// discovered schedules elements inserted after startup. Tags without a
// record get a viewport activation; known tags get a standalone viewport
// watch for the new elements. Late elements of a settled or deferred tag
// are left alone while the tag's conditions are unmet; a deferred tag
// picks them up when it is resubmitted.
func (m *Manager) discovered(tag string, els []Element) {
	m.mu.Lock()
	_, known := m.states[tag]
	_, inflight := m.pending[tag]
	_, deferred := m.deferred[tag]
	cfg := m.configs[tag]
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if !known && !inflight {
		m.log.Debug("discovered new component", logging.String("tag", tag), logging.Int("elements", len(els)))
		m.HydrateComponent(tag, Config{Strategy: StrategyViewport})
		return
	}
	if !inflight && (deferred || !satisfies(m.env, cfg.Conditions, "")) {
		m.log.Debug("late elements held by unmet conditions", logging.String("tag", tag), logging.Int("elements", len(els)))
		return
	}
	m.watchLate(tag, els)
}

// watchLate activates late elements of a known tag as they become
// visible.
func (m *Manager) watchLate(tag string, els []Element) {
	if m.env.Visibility == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	cfg := Config{Strategy: StrategyViewport}.withDefaults()
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, cfg.Timeout)
		defer cancel()

		activate := func(ctx context.Context, el Element) error {
			return m.hydrateElement(ctx, tag, el, cfg)
		}
		if err := m.bridge.awaitVisible(ctx, tag, els, nil, activate); err != nil && m.ctx.Err() == nil {
			m.log.Warn("late elements not activated",
				logging.String("tag", tag), logging.Int("elements", len(els)), logging.Err(err))
		}
	}()
}
