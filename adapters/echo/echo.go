// Package hxhydrateecho exposes a hydration manager over Echo for
// debugging and dashboards.
//
// Mount the debug endpoints onto an Echo instance or group:
//
//	e := echo.New()
//	hxhydrateecho.Mount(e, manager)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/admin", authMiddleware)
//	hxhydrateecho.MountGroup(g, manager, hxhydrateecho.WithKey(key))
//
// Routes, relative to the path prefix (default "/_hydrate/"):
//
//	GET  states      component states, sorted by tag
//	GET  metrics     aggregate metrics and durations
//	GET  snapshot    signed (or encrypted) snapshot
//	GET  prometheus  Prometheus exposition
//	POST pause       pause visibility observers
//	POST resume      resume visibility observers
//	POST force       force every waiting component
package hxhydrateecho

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm/hxhydrate"
	"github.com/pthm/hxhydrate/lib/telemetry"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	key       []byte
	path      string
	sensitive bool
	namespace string
}

// WithKey sets the snapshot signing key. If not provided, a random key is
// generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the URL path prefix for debug routes.
// Defaults to "/_hydrate/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithEncryptedSnapshots encrypts snapshots instead of signing them.
func WithEncryptedSnapshots() Option {
	return func(o *options) {
		o.sensitive = true
	}
}

// WithNamespace sets the Prometheus namespace. Defaults to "hxhydrate".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// routes is the subset of echo.Echo and echo.Group used to register.
type routes interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Mount registers the debug routes for m on an Echo instance.
func Mount(e *echo.Echo, m *hxhydrate.Manager, opts ...Option) (*Handler, error) {
	return mount(e, m, opts)
}

// MountGroup registers the debug routes for m on an Echo group so they
// share the group's middleware.
func MountGroup(g *echo.Group, m *hxhydrate.Manager, opts ...Option) (*Handler, error) {
	return mount(g, m, opts)
}

// Handler serves the debug routes of one manager.
type Handler struct {
	m         *hxhydrate.Manager
	enc       *hxhydrate.Encoder
	sensitive bool
	reg       *prometheus.Registry
	path      string
}

// Path returns the mounted path prefix.
func (h *Handler) Path() string { return h.path }

// Encoder returns the snapshot encoder, for decoding served snapshots.
func (h *Handler) Encoder() *hxhydrate.Encoder { return h.enc }

func mount(r routes, m *hxhydrate.Manager, opts []Option) (*Handler, error) {
	h, err := newHandler(m, opts)
	if err != nil {
		return nil, err
	}
	r.GET(h.path+"states", h.states)
	r.GET(h.path+"metrics", h.metrics)
	r.GET(h.path+"snapshot", h.snapshot)
	r.GET(h.path+"prometheus", echo.WrapHandler(promhttp.HandlerFor(h.reg, promhttp.HandlerOpts{})))
	r.POST(h.path+"pause", h.pause)
	r.POST(h.path+"resume", h.resume)
	r.POST(h.path+"force", h.force)
	return h, nil
}

func newHandler(m *hxhydrate.Manager, opts []Option) (*Handler, error) {
	o := &options{path: "/_hydrate/", namespace: "hxhydrate"}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("hxhydrateecho: failed to generate random key: %w", err)
		}
	}
	enc, err := hxhydrate.NewEncoder(key)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(telemetry.NewCollector(o.namespace, m)); err != nil {
		return nil, err
	}

	return &Handler{m: m, enc: enc, sensitive: o.sensitive, reg: reg, path: o.path}, nil
}

type metricsResponse struct {
	Metrics   hxhydrate.Metrics        `json:"metrics"`
	Durations []hxhydrate.DurationStat `json:"durations"`
	InFlight  int                      `json:"inFlight"`
}

func (h *Handler) states(c echo.Context) error {
	return c.JSON(http.StatusOK, h.m.Snapshot().States)
}

func (h *Handler) metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, metricsResponse{
		Metrics:   h.m.GetMetrics(),
		Durations: h.m.Durations(),
		InFlight:  h.m.InFlight(),
	})
}

func (h *Handler) snapshot(c echo.Context) error {
	encoded, err := hxhydrate.EncodeSnapshot(h.enc, h.m.Snapshot(), h.sensitive)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.String(http.StatusOK, encoded)
}

func (h *Handler) pause(c echo.Context) error {
	h.m.PauseHydration()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) resume(c echo.Context) error {
	h.m.ResumeHydration()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) force(c echo.Context) error {
	acts := h.m.ForceHydrateAll()
	tags := make([]string, len(acts))
	for i, a := range acts {
		tags[i] = a.Tag()
	}
	return c.JSON(http.StatusAccepted, map[string]any{"forced": tags})
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxhydrateecho.Render(c, hxhydrate.Lazy("fluent-chart", chart()))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
