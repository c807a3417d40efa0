package hxhydrate

import (
	"time"

	"github.com/pthm/hxhydrate/lib/dom"
)

// FromBrowser adapts an in-memory dom.Browser to an Environment. Browser
// signals that are disabled (idle scheduling) map to nil ports.
func FromBrowser(b *dom.Browser) Environment {
	env := Environment{
		Document:   domDocument{b.Document},
		Visibility: domViewport{b.Viewport},
		Media:      domMedia{b.Media},
		Network:    domNetwork{b.Network},
		Device:     domDevice{b.Device},
		Window:     b.Window,
	}
	if b.Idle.Enabled() {
		env.Idle = domIdle{b.Idle}
	}
	return env
}

// ElementOf returns the dom element behind an Element created by
// FromBrowser, or nil.
func ElementOf(el Element) *dom.Element {
	if de, ok := el.(domElement); ok {
		return de.el
	}
	return nil
}

type domElement struct{ el *dom.Element }

func (e domElement) TagName() string                      { return e.el.TagName() }
func (e domElement) Attr(name string) (string, bool)      { return e.el.Attr(name) }
func (e domElement) SetAttr(name, value string)           { e.el.SetAttr(name, value) }
func (e domElement) RemoveAttr(name string)               { e.el.RemoveAttr(name) }
func (e domElement) Matches(sel string) (bool, error)     { return e.el.Matches(sel) }
func (e domElement) Component() any                       { return e.el.Component() }
func (e domElement) Dispatch(ev string, d map[string]any) { e.el.Dispatch(ev, d, true) }

func (e domElement) Listen(event string, fn func()) func() {
	return e.el.AddEventListener(event, func(dom.Event) { fn() })
}

type domDocument struct{ doc *dom.Document }

func (d domDocument) QueryAll(selector string) ([]Element, error) {
	els, err := d.doc.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

func (d domDocument) ObserveInsertions(fn func([]Element)) func() {
	return d.doc.Observe(func(added []*dom.Element) { fn(wrapAll(added)) })
}

func wrapAll(els []*dom.Element) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = domElement{el}
	}
	return out
}

type domViewport struct{ vp *dom.Viewport }

func (v domViewport) NewObserver(fn func(Element, bool)) VisibilityObserver {
	return domObserver{v.vp.NewObserver(func(el *dom.Element, visible bool) {
		fn(domElement{el}, visible)
	})}
}

type domObserver struct{ o *dom.IntersectionObserver }

func (o domObserver) Observe(el Element) {
	if de := ElementOf(el); de != nil {
		o.o.Observe(de)
	}
}

func (o domObserver) Unobserve(el Element) {
	if de := ElementOf(el); de != nil {
		o.o.Unobserve(de)
	}
}

func (o domObserver) Disconnect() { o.o.Disconnect() }

type domIdle struct{ idle *dom.Idle }

func (i domIdle) RequestIdle(fn func(time.Duration)) func() { return i.idle.Request(fn) }

type domMedia struct{ m *dom.Media }

func (m domMedia) Matches(q string) bool                     { return m.m.Matches(q) }
func (m domMedia) WatchMedia(q string, fn func(bool)) func() { return m.m.Watch(q, fn) }

type domNetwork struct{ n *dom.Network }

func (n domNetwork) EffectiveType() (string, bool) {
	t, _, ok := n.n.Info()
	return t, ok
}

func (n domNetwork) SaveData() (bool, bool) {
	_, s, ok := n.n.Info()
	return s, ok
}

type domDevice struct{ d *dom.Device }

func (d domDevice) Memory() (float64, bool)       { return d.d.Memory() }
func (d domDevice) BatteryLevel() (float64, bool) { return d.d.Battery() }
