package hxhydrate

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxhydrate/lib/logging"
)

// Discovery attributes read by AutoHydrate.
const (
	AttrStrategy = "data-hydrate-strategy"
	AttrPriority = "data-hydrate-priority"
	// AttrTimeout holds an integer number of milliseconds.
	AttrTimeout = "data-hydrate-timeout"
)

// Outcome is the settled result of one batched request.
type Outcome struct {
	Tag      string
	Priority Priority
	Status   Status
	Err      error
}

// HydrateComponents submits reqs ordered by priority, in chunks of
// Options.BatchSize. Each chunk is joined before the next starts; a failed
// entry never affects its siblings. Outcomes are returned in submission
// order, which is priority order.
func (m *Manager) HydrateComponents(ctx context.Context, reqs []Request) []Outcome {
	sorted := sortByPriority(reqs)
	out := make([]Outcome, 0, len(sorted))

	for _, chunk := range chunkRequests(sorted, m.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			for _, r := range chunk {
				out = append(out, Outcome{Tag: r.Tag, Priority: r.Config.Priority, Status: StatusPending, Err: err})
			}
			continue
		}

		acts := make([]*Activation, len(chunk))
		for i, r := range chunk {
			acts[i] = m.HydrateComponent(r.Tag, r.Config)
		}

		settled := make([]Outcome, len(chunk))
		var g errgroup.Group
		for i := range chunk {
			g.Go(func() error {
				err := acts[i].Wait(ctx)
				settled[i] = Outcome{
					Tag:      acts[i].Tag(),
					Priority: chunk[i].Config.Priority,
					Status:   acts[i].Status(),
					Err:      err,
				}
				return nil
			})
		}
		_ = g.Wait()
		out = append(out, settled...)
	}
	return out
}

// sortByPriority returns reqs stably sorted critical, high, normal, low.
// Missing priorities become normal.
func sortByPriority(reqs []Request) []Request {
	out := make([]Request, len(reqs))
	for i, r := range reqs {
		if r.Config.Priority == "" {
			r.Config.Priority = PriorityNormal
		}
		out[i] = r
	}
	slices.SortStableFunc(out, func(a, b Request) int {
		return a.Config.Priority.rank() - b.Config.Priority.rank()
	})
	return out
}

func chunkRequests(reqs []Request, size int) [][]Request {
	if size <= 0 {
		size = len(reqs)
	}
	var chunks [][]Request
	for len(reqs) > 0 {
		n := min(size, len(reqs))
		chunks = append(chunks, reqs[:n])
		reqs = reqs[n:]
	}
	return chunks
}

// AutoOptions controls AutoHydrate.
type AutoOptions struct {
	// Selector finds candidate elements. Defaults to "*"; only tags with
	// the reserved prefix are considered either way.
	Selector string
	// Strategy applies to elements without a data-hydrate-strategy
	// attribute. Defaults to Options.DefaultStrategy.
	Strategy Strategy
	// Tags optionally restricts discovery to these tag names.
	Tags []string
	// Base supplies the remaining configuration for every discovered tag.
	Base Config
}

// AutoHydrate discovers unhydrated components in the document and batches
// one request per tag. The first element of a tag decides its config.
func (m *Manager) AutoHydrate(ctx context.Context, opts AutoOptions) ([]Outcome, error) {
	if m.env.Document == nil {
		return nil, ErrNoDocument
	}
	sel := opts.Selector
	if sel == "" {
		sel = "*"
	}
	def := opts.Strategy
	if def == "" {
		def = m.opts.DefaultStrategy
	}

	els, err := m.env.Document.QueryAll(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: selector %q: %v", ErrInvalidConfig, sel, err)
	}

	allow := make(map[string]bool, len(opts.Tags))
	for _, t := range opts.Tags {
		allow[strings.ToLower(t)] = true
	}

	seen := make(map[string]bool)
	var reqs []Request
	for _, el := range els {
		tag := strings.ToLower(el.TagName())
		if !strings.HasPrefix(tag, m.opts.ReservedPrefix) || seen[tag] || IsHydrated(el) {
			continue
		}
		if len(allow) > 0 && !allow[tag] {
			continue
		}
		seen[tag] = true

		base := opts.Base
		base.Strategy = def
		cfg, err := ElementConfig(el, base)
		if err != nil {
			m.log.Warn("ignoring invalid discovery attributes",
				logging.String("tag", tag), logging.Err(err))
			cfg = base
		}
		reqs = append(reqs, Request{Tag: tag, Config: cfg})
	}

	m.log.Debug("auto hydrate discovered components", logging.Int("tags", len(reqs)))
	return m.HydrateComponents(ctx, reqs), nil
}

// ElementConfig overlays the discovery attributes of el on base. It
// returns base and an error if an attribute cannot be parsed.
func ElementConfig(el Element, base Config) (Config, error) {
	cfg := base
	if v, ok := el.Attr(AttrStrategy); ok && v != "" {
		s, err := ParseStrategy(v)
		if err != nil {
			return base, err
		}
		cfg.Strategy = s
	}
	if v, ok := el.Attr(AttrPriority); ok && v != "" {
		p, err := ParsePriority(v)
		if err != nil {
			return base, err
		}
		cfg.Priority = p
	}
	if v, ok := el.Attr(AttrTimeout); ok && v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || ms < 0 {
			return base, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, AttrTimeout, v)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg, nil
}
