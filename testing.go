package hxhydrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pthm/hxhydrate/lib/dom"
)

// RecordingComponent is a component that records its activation hooks.
//
// Attach it to elements through dom.Document.Define to exercise the
// scheduler without real components:
//
//	page.Browser.Document.Define("fluent-card", func(*dom.Element) any {
//	    return &hxhydrate.RecordingComponent{}
//	})
//
// FailTimes makes the first n Hydrate calls fail with HydrateErr (or a
// generic error when HydrateErr is nil). Delay makes Hydrate take that
// long, honouring ctx.
type RecordingComponent struct {
	FailTimes  int
	HydrateErr error
	Delay      time.Duration
	Panic      bool

	mu        sync.Mutex
	calls     int
	connected bool
	listeners bool
}

// Hydrate implements Hydrater.
func (c *RecordingComponent) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	c.calls++
	n := c.calls
	delay := c.Delay
	c.mu.Unlock()

	if c.Panic {
		panic("recording component panic")
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= c.FailTimes {
		if c.HydrateErr != nil {
			return c.HydrateErr
		}
		return fmt.Errorf("hydrate call %d failed", n)
	}
	return nil
}

// IsConnected implements Connector.
func (c *RecordingComponent) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect implements Connector.
func (c *RecordingComponent) Connect() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
}

// SetupEventListeners implements ListenerSetup.
func (c *RecordingComponent) SetupEventListeners() {
	c.mu.Lock()
	c.listeners = true
	c.mu.Unlock()
}

// Calls returns how many times Hydrate ran.
func (c *RecordingComponent) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Ready reports whether Connect and SetupEventListeners both ran.
func (c *RecordingComponent) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.listeners
}

// TestPage is an in-memory page with a browser and matching Environment.
type TestPage struct {
	Browser *dom.Browser
	Env     Environment
}

// NewTestPage parses markup into a page. Tags listed in components get a
// fresh RecordingComponent per element.
//
//	page, err := hxhydrate.NewTestPage(`<fluent-card></fluent-card>`, "fluent-card")
//	m, _ := hxhydrate.New(page.Env, hxhydrate.DefaultOptions())
func NewTestPage(markup string, components ...string) (*TestPage, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}
	for _, tag := range components {
		doc.Define(tag, func(*dom.Element) any { return &RecordingComponent{} })
	}
	b := dom.NewBrowser(doc)
	return &TestPage{Browser: b, Env: FromBrowser(b)}, nil
}

// Elements returns the elements of tag in document order.
func (p *TestPage) Elements(tag string) []*dom.Element {
	els, err := p.Browser.Document.QueryAll(tag)
	if err != nil {
		return nil
	}
	return els
}

// Recorder returns the RecordingComponent attached to el, or nil.
func Recorder(el *dom.Element) *RecordingComponent {
	rc, _ := el.Component().(*RecordingComponent)
	return rc
}

// Show marks every element of tag visible.
func (p *TestPage) Show(tag string) {
	for _, el := range p.Elements(tag) {
		p.Browser.Viewport.SetVisible(el, true)
	}
}

// HydratedCount returns how many elements of tag carry the hydrated
// marker.
func (p *TestPage) HydratedCount(tag string) int {
	n := 0
	for _, el := range p.Elements(tag) {
		if el.HasAttr(AttrHydrated) {
			n++
		}
	}
	return n
}

// ErrWaitTimeout is returned by WaitForStatus when the status is not
// reached in time.
var ErrWaitTimeout = errors.New("hxhydrate: status not reached")

// WaitForStatus polls m until tag reaches want or timeout elapses.
func WaitForStatus(m *Manager, tag string, want Status, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st, ok := m.State(tag)
		if ok && st.Status == want {
			return nil
		}
		if time.Now().After(deadline) {
			got := Status("none")
			if ok {
				got = st.Status
			}
			return fmt.Errorf("%w: %s is %s, want %s", ErrWaitTimeout, tag, got, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
