// Package dom is a headless, in-memory stand-in for the browser surfaces the
// activation scheduler talks to.
//
// A Document wraps a golang.org/x/net/html tree and adds what the scheduler
// needs from a live page: CSS selector queries (via cascadia), attribute
// mutation, element-scoped event listeners with bubbling, a custom-element
// style registry that attaches component instances to elements, and an
// insertion watcher that reports elements added after parsing.
//
// A Browser bundles a Document with simulated environment signals: element
// visibility (Viewport), media queries (Media), network class (Network),
// device memory and battery (Device), idle-time callbacks (Idle) and a
// window-level event target (Window). Tests and tools drive these signals
// directly:
//
//	doc, _ := dom.ParseString(`<body><fluent-card></fluent-card></body>`)
//	b := dom.NewBrowser(doc)
//	card, _ := doc.Query("fluent-card")
//	b.Viewport.SetVisible(card, true)
//
// All types are safe for concurrent use. Callbacks are never invoked while
// an internal lock is held.
package dom
