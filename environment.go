package hxhydrate

import (
	"context"
	"time"
)

// Element is the scheduler's view of a DOM element.
type Element interface {
	TagName() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)
	// Matches reports whether the element matches a CSS selector group.
	Matches(selector string) (bool, error)
	// Listen registers fn for events of the given type and returns a func
	// that removes it.
	Listen(event string, fn func()) (remove func())
	// Dispatch fires a bubbling event on the element.
	Dispatch(event string, detail map[string]any)
	// Component returns the component instance attached to the element, if
	// any. See Hydrater, Connector and ListenerSetup.
	Component() any
}

// Document is the scheduler's view of the page.
type Document interface {
	QueryAll(selector string) ([]Element, error)
	// ObserveInsertions reports elements inserted after the call.
	ObserveInsertions(fn func(added []Element)) (stop func())
}

// VisibilityObserver watches elements for viewport intersection.
type VisibilityObserver interface {
	Observe(el Element)
	Unobserve(el Element)
	Disconnect()
}

// VisibilitySource creates visibility observers.
type VisibilitySource interface {
	NewObserver(fn func(el Element, visible bool)) VisibilityObserver
}

// IdleScheduler schedules callbacks for idle periods. The callback
// receives the remaining idle time.
type IdleScheduler interface {
	RequestIdle(fn func(remaining time.Duration)) (cancel func())
}

// MediaMatcher evaluates media queries.
type MediaMatcher interface {
	Matches(query string) bool
	WatchMedia(query string, fn func(matches bool)) (stop func())
}

// NetworkInfo reports the network class. ok is false when the API is
// unavailable.
type NetworkInfo interface {
	EffectiveType() (effectiveType string, ok bool)
	SaveData() (saveData bool, ok bool)
}

// DeviceInfo reports device capabilities. ok is false when unavailable.
type DeviceInfo interface {
	Memory() (gb float64, ok bool)
	BatteryLevel() (level float64, ok bool)
}

// EventTarget receives window-level events.
type EventTarget interface {
	Dispatch(event string, detail map[string]any)
}

// Environment bundles the runtime signals the scheduler consumes. A nil
// port means the corresponding browser API is unavailable.
type Environment struct {
	Document   Document
	Visibility VisibilitySource
	Idle       IdleScheduler
	Media      MediaMatcher
	Network    NetworkInfo
	Device     DeviceInfo
	Window     EventTarget
}

// Hydrater is implemented by components that need asynchronous setup
// before they are interactive. It is awaited during activation; an error
// fails the activation and is subject to retry.
type Hydrater interface {
	Hydrate(ctx context.Context) error
}

// Connector is implemented by components with a connection hook. Connect
// is invoked during activation when IsConnected reports false.
type Connector interface {
	IsConnected() bool
	Connect()
}

// ListenerSetup is implemented by components that attach their own event
// listeners once activated.
type ListenerSetup interface {
	SetupEventListeners()
}
