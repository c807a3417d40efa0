// Package hxhydrate schedules the activation of server-rendered
// components.
//
// Pages render custom elements as inert HTML. hxhydrate decides when each
// element becomes interactive: immediately, when the page is idle, when it
// scrolls into view, on first interaction, or when a media query, network
// class or idle budget allows it. Every activation is tracked per tag,
// retried with exponential backoff and measured.
//
// # Core Concepts
//
// A Manager owns all scheduling state for one page. It consumes the page
// through an Environment of small ports (document, visibility, idle,
// media, network, device, window) so it can run over a real browser
// bridge or over the in-memory lib/dom browser:
//
//	page, _ := dom.ParseString(markup)
//	b := dom.NewBrowser(page)
//	m, err := hxhydrate.New(hxhydrate.FromBrowser(b), hxhydrate.DefaultOptions())
//
// Each distinct tag has one ComponentState moving through
// pending -> hydrating -> hydrated or error. A failed attempt may go
// error -> hydrating again while retries remain.
//
// # Requests
//
// HydrateComponent submits one tag and returns an *Activation that
// completes when the tag is settled:
//
//	a := m.HydrateComponent("fluent-chart", hxhydrate.Config{
//	    Strategy: hxhydrate.StrategyViewport,
//	    Timeout:  5 * time.Second,
//	})
//	if err := a.Wait(ctx); hxhydrate.IsTimeout(err) {
//	    // never scrolled into view
//	}
//
// Concurrent requests for a tag share one Activation. Requests for an
// already hydrated tag resolve immediately. When Config.Conditions are not
// met the request completes without error and the tag stays pending.
//
// HydrateComponents batches requests by priority, and AutoHydrate builds
// the batch from the data-hydrate-* attributes found in the document.
//
// # Elements
//
// Activating an element runs the hooks its component implements
// (Hydrater, Connector, ListenerSetup) and writes marker attributes.
// data-fluent-hydrated is authoritative: a marked element is never
// activated again, which also makes retries incremental.
//
// Newly inserted elements whose tag starts with the reserved prefix
// ("fluent-") are discovered automatically and scheduled for viewport
// activation.
//
// # Server Side
//
// Island renders the discovery attributes from templ:
//
//	@hxhydrate.Island("fluent-chart", hxhydrate.Config{Strategy: hxhydrate.StrategyLazy}, chart())
//
// # Observability
//
// GetMetrics, GetComponentStates, Durations and Snapshot expose what the
// scheduler did. lib/telemetry exports them to Prometheus and
// adapters/echo serves them over HTTP.
package hxhydrate
