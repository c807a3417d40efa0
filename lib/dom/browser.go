package dom

import (
	"sync"
	"time"
)

// Browser bundles a document with simulated environment signals.
type Browser struct {
	Document *Document
	Window   *Window
	Viewport *Viewport
	Media    *Media
	Network  *Network
	Device   *Device
	Idle     *Idle
}

// NewBrowser returns a browser over doc. Network and device signals start
// unavailable; idle callbacks are enabled with generous slack.
func NewBrowser(doc *Document) *Browser {
	return &Browser{
		Document: doc,
		Window:   NewWindow(),
		Viewport: NewViewport(),
		Media:    NewMedia(),
		Network:  &Network{},
		Device:   &Device{},
		Idle:     NewIdle(),
	}
}

// Window is the window-level event target.
type Window struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextID    int
}

// NewWindow returns an empty event target.
func NewWindow() *Window {
	return &Window{listeners: make(map[string][]listener)}
}

// AddEventListener registers fn for window events of type typ.
func (w *Window) AddEventListener(typ string, fn func(Event)) (remove func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[typ] = append(w.listeners[typ], listener{id: id, fn: fn})
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		ls := w.listeners[typ]
		for i, l := range ls {
			if l.id == id {
				w.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers a window event.
func (w *Window) Dispatch(typ string, detail map[string]any) {
	w.mu.Lock()
	ls := w.listeners[typ]
	fns := make([]func(Event), len(ls))
	for i, l := range ls {
		fns[i] = l.fn
	}
	w.mu.Unlock()

	ev := Event{Type: typ, Detail: detail}
	for _, fn := range fns {
		fn(ev)
	}
}

// Viewport tracks which elements are visible and feeds intersection
// observers.
type Viewport struct {
	mu        sync.Mutex
	visible   map[*Element]bool
	observers map[*IntersectionObserver]struct{}
}

// NewViewport returns a viewport in which nothing is visible.
func NewViewport() *Viewport {
	return &Viewport{
		visible:   make(map[*Element]bool),
		observers: make(map[*IntersectionObserver]struct{}),
	}
}

// NewObserver creates an intersection observer. fn receives an entry for
// each observed element whose visibility changes, and an initial entry on
// Observe for elements that are already visible.
func (v *Viewport) NewObserver(fn func(el *Element, visible bool)) *IntersectionObserver {
	o := &IntersectionObserver{vp: v, fn: fn, targets: make(map[*Element]struct{})}
	v.mu.Lock()
	v.observers[o] = struct{}{}
	v.mu.Unlock()
	return o
}

// SetVisible changes the visibility of el and notifies observers watching it.
func (v *Viewport) SetVisible(el *Element, visible bool) {
	v.mu.Lock()
	if v.visible[el] == visible {
		v.mu.Unlock()
		return
	}
	v.visible[el] = visible
	var fns []func(*Element, bool)
	for o := range v.observers {
		if o.watching(el) {
			fns = append(fns, o.fn)
		}
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(el, visible)
	}
}

// IsVisible reports whether el is currently visible.
func (v *Viewport) IsVisible(el *Element) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible[el]
}

// ActiveObservers returns the number of connected observers.
func (v *Viewport) ActiveObservers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.observers)
}

// IntersectionObserver reports visibility changes of its targets.
type IntersectionObserver struct {
	vp *Viewport
	fn func(*Element, bool)

	mu      sync.Mutex
	targets map[*Element]struct{}
	closed  bool
}

// Observe starts watching el.
func (o *IntersectionObserver) Observe(el *Element) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.targets[el] = struct{}{}
	o.mu.Unlock()

	if o.vp.IsVisible(el) {
		go o.fn(el, true)
	}
}

// Unobserve stops watching el.
func (o *IntersectionObserver) Unobserve(el *Element) {
	o.mu.Lock()
	delete(o.targets, el)
	o.mu.Unlock()
}

// Disconnect stops watching every target and detaches the observer.
func (o *IntersectionObserver) Disconnect() {
	o.mu.Lock()
	o.closed = true
	o.targets = make(map[*Element]struct{})
	o.mu.Unlock()

	o.vp.mu.Lock()
	delete(o.vp.observers, o)
	o.vp.mu.Unlock()
}

func (o *IntersectionObserver) watching(el *Element) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.targets[el]
	return ok
}

// Media answers media queries from an explicit table. Unknown queries do
// not match.
type Media struct {
	mu       sync.Mutex
	matches  map[string]bool
	watchers map[string]map[int]func(bool)
	nextID   int
}

// NewMedia returns a media table in which nothing matches.
func NewMedia() *Media {
	return &Media{
		matches:  make(map[string]bool),
		watchers: make(map[string]map[int]func(bool)),
	}
}

// Set records whether query matches and notifies watchers on change.
func (m *Media) Set(query string, matches bool) {
	m.mu.Lock()
	if m.matches[query] == matches {
		m.mu.Unlock()
		return
	}
	m.matches[query] = matches
	fns := make([]func(bool), 0, len(m.watchers[query]))
	for _, fn := range m.watchers[query] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(matches)
	}
}

// Matches reports whether query currently matches.
func (m *Media) Matches(query string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches[query]
}

// Watch calls fn whenever the match state of query changes.
func (m *Media) Watch(query string, fn func(matches bool)) (stop func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.watchers[query] == nil {
		m.watchers[query] = make(map[int]func(bool))
	}
	m.watchers[query][id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers[query], id)
		m.mu.Unlock()
	}
}

// Network simulates the Network Information API.
type Network struct {
	mu            sync.Mutex
	available     bool
	effectiveType string
	saveData      bool
}

// Set makes network information available with the given values.
func (n *Network) Set(effectiveType string, saveData bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.available = true
	n.effectiveType = effectiveType
	n.saveData = saveData
}

// Info returns the current values; ok is false while unavailable.
func (n *Network) Info() (effectiveType string, saveData bool, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.effectiveType, n.saveData, n.available
}

// Device simulates device memory and the battery API.
type Device struct {
	mu         sync.Mutex
	memory     float64
	hasMemory  bool
	battery    float64
	hasBattery bool
}

// SetMemory sets device memory in gigabytes.
func (d *Device) SetMemory(gb float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memory, d.hasMemory = gb, true
}

// SetBattery sets the battery level in [0, 1].
func (d *Device) SetBattery(level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.battery, d.hasBattery = level, true
}

// Memory returns device memory; ok is false while unavailable.
func (d *Device) Memory() (gb float64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory, d.hasMemory
}

// Battery returns the battery level; ok is false while unavailable.
func (d *Device) Battery() (level float64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.battery, d.hasBattery
}

// Idle simulates requestIdleCallback: callbacks fire after Delay and are
// told Slack of remaining idle time.
type Idle struct {
	mu       sync.Mutex
	disabled bool
	delay    time.Duration
	slack    time.Duration
}

// NewIdle returns an idle scheduler firing after 5ms with 50ms slack.
func NewIdle() *Idle {
	return &Idle{delay: 5 * time.Millisecond, slack: 50 * time.Millisecond}
}

// SetSlack changes the remaining time reported to callbacks.
func (i *Idle) SetSlack(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.slack = d
}

// SetDelay changes how long callbacks wait before firing.
func (i *Idle) SetDelay(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.delay = d
}

// Disable simulates a browser without idle scheduling.
func (i *Idle) Disable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disabled = true
}

// Enabled reports whether idle scheduling is available.
func (i *Idle) Enabled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.disabled
}

// Request schedules fn. The slack is sampled when fn fires.
func (i *Idle) Request(fn func(remaining time.Duration)) (cancel func()) {
	i.mu.Lock()
	delay := i.delay
	i.mu.Unlock()

	t := time.AfterFunc(delay, func() {
		i.mu.Lock()
		slack := i.slack
		i.mu.Unlock()
		fn(slack)
	})
	return func() { t.Stop() }
}
