package dom

import (
	"bytes"
	"sync"

	"golang.org/x/net/html"
)

// Event is delivered to element and window listeners.
type Event struct {
	Type   string
	Detail map[string]any
	// Target is the element the event was dispatched on; nil for window events.
	Target *Element
}

type listener struct {
	id int
	fn func(Event)
}

// Element is a handle to an element node of a Document. Handles are
// canonical: the same node always yields the same *Element.
type Element struct {
	doc  *Document
	node *html.Node

	mu        sync.Mutex
	listeners map[string][]listener
	nextID    int
	component any
}

// TagName returns the lower-case tag name.
func (e *Element) TagName() string {
	return e.node.Data
}

// Attr returns the value of the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr adds or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// Matches reports whether the element matches the CSS selector group.
func (e *Element) Matches(selector string) (bool, error) {
	sel, err := compile(selector)
	if err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return sel.Match(e.node), nil
}

// Parent returns the parent element, or nil at the top of the tree.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	p := e.node.Parent
	e.doc.mu.RUnlock()
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// Connected reports whether the element is attached to its document.
func (e *Element) Connected() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// AddEventListener registers fn for events of type typ dispatched on this
// element or, for bubbling events, on its descendants.
func (e *Element) AddEventListener(typ string, fn func(Event)) (remove func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[typ] = append(e.listeners[typ], listener{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		ls := e.listeners[typ]
		for i, l := range ls {
			if l.id == id {
				e.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (e *Element) ListenerCount(typ string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[typ])
}

// Dispatch delivers an event to this element's listeners and, when bubbles
// is set, to each ancestor's listeners in turn.
func (e *Element) Dispatch(typ string, detail map[string]any, bubbles bool) {
	ev := Event{Type: typ, Detail: detail, Target: e}
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, fn := range cur.snapshot(typ) {
			fn(ev)
		}
		if !bubbles {
			return
		}
	}
}

// Component returns the component instance attached to the element.
func (e *Element) Component() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.component
}

// SetComponent attaches a component instance, replacing any previous one.
func (e *Element) SetComponent(c any) {
	e.mu.Lock()
	e.component = c
	e.mu.Unlock()
}

// OuterHTML renders the element and its subtree.
func (e *Element) OuterHTML() string {
	var buf bytes.Buffer
	e.doc.mu.RLock()
	_ = html.Render(&buf, e.node)
	e.doc.mu.RUnlock()
	return buf.String()
}

func (e *Element) upgrade(factory Factory) {
	e.mu.Lock()
	if e.component != nil {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	c := factory(e)

	e.mu.Lock()
	if e.component == nil {
		e.component = c
	}
	e.mu.Unlock()
}

func (e *Element) snapshot(typ string) []func(Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[typ]
	fns := make([]func(Event), len(ls))
	for i, l := range ls {
		fns[i] = l.fn
	}
	return fns
}
