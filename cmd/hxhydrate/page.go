package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pthm/hxhydrate"
	"github.com/pthm/hxhydrate/lib/config"
	"github.com/pthm/hxhydrate/lib/dom"
	"github.com/pthm/hxhydrate/lib/logging"
)

// simulation describes the browser signals of a headless run.
type simulation struct {
	visible  []string
	media    []string
	network  string
	saveData bool
	memory   float64
	battery  float64
	noIdle   bool
}

// setup loads configuration and builds the logger.
func setup() (*config.Config, *logging.ZapAdapter, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.NewZap(logging.Config{Level: logging.ParseLevel(level), Name: "hxhydrate"})
	return cfg, log, nil
}

// loadPage parses path into a browser configured by sim.
func loadPage(path string, sim simulation) (*dom.Browser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return nil, err
	}
	b := dom.NewBrowser(doc)
	if err := sim.apply(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s simulation) apply(b *dom.Browser) error {
	for _, q := range s.media {
		query, val, ok := strings.Cut(q, "=")
		matches := true
		if ok {
			v, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("media %q: %w", q, err)
			}
			matches = v
		}
		b.Media.Set(query, matches)
	}
	if s.network != "" {
		b.Network.Set(s.network, s.saveData)
	}
	if s.memory > 0 {
		b.Device.SetMemory(s.memory)
	}
	if s.battery > 0 {
		b.Device.SetBattery(s.battery)
	}
	if s.noIdle {
		b.Idle.Disable()
	}
	return s.show(b, nil)
}

// show marks the elements matching the visible selectors as visible. With
// only set, just those elements are considered.
func (s simulation) show(b *dom.Browser, only []*dom.Element) error {
	for _, sel := range s.visible {
		if only != nil {
			for _, el := range only {
				ok, err := el.Matches(sel)
				if err != nil {
					return fmt.Errorf("visible %q: %w", sel, err)
				}
				if ok {
					b.Viewport.SetVisible(el, true)
				}
			}
			continue
		}
		els, err := b.Document.QueryAll(sel)
		if err != nil {
			return fmt.Errorf("visible %q: %w", sel, err)
		}
		for _, el := range els {
			b.Viewport.SetVisible(el, true)
		}
	}
	return nil
}

func newManager(cfg *config.Config, log logging.Logger, b *dom.Browser, sink hxhydrate.AnalyticsSink) (*hxhydrate.Manager, error) {
	opts := cfg.Options(log)
	opts.Analytics = sink
	return hxhydrate.New(hxhydrate.FromBrowser(b), opts)
}
