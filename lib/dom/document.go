package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoBody is returned when a document operation needs a <body> element
// and the parsed tree has none.
var ErrNoBody = errors.New("dom: document has no body")

// Factory creates the component instance attached to an element of a
// defined tag.
type Factory func(el *Element) any

// Document is a mutable, concurrency-safe HTML document.
type Document struct {
	mu   sync.RWMutex
	root *html.Node

	wmu      sync.Mutex
	wrappers map[*html.Node]*Element
	defs     map[string]Factory

	omu      sync.Mutex
	watchers map[int]func([]*Element)
	nextID   int
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{
		root:     root,
		wrappers: make(map[*html.Node]*Element),
		defs:     make(map[string]Factory),
		watchers: make(map[int]func([]*Element)),
	}, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Define registers a component factory for tag, in the spirit of
// customElements.define. Existing elements of that tag are upgraded
// immediately; elements inserted later are upgraded on insertion.
func (d *Document) Define(tag string, factory Factory) {
	tag = strings.ToLower(tag)
	d.wmu.Lock()
	d.defs[tag] = factory
	d.wmu.Unlock()

	els, err := d.QueryAll(tag)
	if err != nil {
		return
	}
	for _, el := range els {
		el.upgrade(factory)
	}
}

// QueryAll returns every element matching the CSS selector group, in
// document order.
func (d *Document) QueryAll(selector string) ([]*Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	nodes := cascadia.QueryAll(d.root, sel)
	d.mu.RUnlock()

	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) (*Element, error) {
	els, err := d.QueryAll(selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// Body returns the <body> element.
func (d *Document) Body() (*Element, error) {
	d.mu.RLock()
	n := findAtom(d.root, atom.Body)
	d.mu.RUnlock()
	if n == nil {
		return nil, ErrNoBody
	}
	return d.wrap(n), nil
}

// AppendHTML parses fragment in the context of parent, appends the
// resulting nodes and notifies insertion watchers. It returns every
// inserted element, descendants included, in document order.
func (d *Document) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.node)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}

	d.mu.Lock()
	for _, n := range nodes {
		parent.node.AppendChild(n)
	}
	d.mu.Unlock()

	inserted := d.collect(nodes)
	d.notify(inserted)
	return inserted, nil
}

// ReplaceBody swaps the children of <body> for those of the document read
// from r. Watchers see every element of the new body as inserted.
func (d *Document) ReplaceBody(r io.Reader) ([]*Element, error) {
	next, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	src := findAtom(next, atom.Body)
	if src == nil {
		return nil, ErrNoBody
	}

	d.mu.Lock()
	dst := findAtom(d.root, atom.Body)
	if dst == nil {
		d.mu.Unlock()
		return nil, ErrNoBody
	}
	for c := dst.FirstChild; c != nil; {
		nextSibling := c.NextSibling
		dst.RemoveChild(c)
		c = nextSibling
	}
	var moved []*html.Node
	for c := src.FirstChild; c != nil; {
		nextSibling := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		moved = append(moved, c)
		c = nextSibling
	}
	d.mu.Unlock()

	inserted := d.collect(moved)
	d.notify(inserted)
	return inserted, nil
}

// Remove detaches el from the tree.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.node.Parent != nil {
		el.node.Parent.RemoveChild(el.node)
	}
}

// Observe registers fn to receive elements inserted by AppendHTML and
// ReplaceBody. The returned func unregisters it.
func (d *Document) Observe(fn func(added []*Element)) (stop func()) {
	d.omu.Lock()
	id := d.nextID
	d.nextID++
	d.watchers[id] = fn
	d.omu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.omu.Lock()
			delete(d.watchers, id)
			d.omu.Unlock()
		})
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, for debugging.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) notify(added []*Element) {
	if len(added) == 0 {
		return
	}
	d.omu.Lock()
	fns := make([]func([]*Element), 0, len(d.watchers))
	for _, fn := range d.watchers {
		fns = append(fns, fn)
	}
	d.omu.Unlock()

	for _, fn := range fns {
		fn(added)
	}
}

// collect wraps the element nodes of the given subtrees in document order.
func (d *Document) collect(roots []*html.Node) []*Element {
	var nodes []*html.Node
	d.mu.RLock()
	for _, r := range roots {
		walk(r, func(n *html.Node) {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		})
	}
	d.mu.RUnlock()

	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

func (d *Document) wrap(n *html.Node) *Element {
	d.wmu.Lock()
	el, ok := d.wrappers[n]
	if !ok {
		el = &Element{doc: d, node: n, listeners: make(map[string][]listener)}
		d.wrappers[n] = el
	}
	factory := d.defs[n.Data]
	d.wmu.Unlock()

	if factory != nil {
		el.upgrade(factory)
	}
	return el
}

func compile(selector string) (cascadia.SelectorGroup, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: selector %q: %w", selector, err)
	}
	return sel, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}
