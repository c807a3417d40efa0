package hxhydrate

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// IslandAttrs returns the discovery attributes AutoHydrate reads for cfg.
// Zero fields are omitted.
//
//	<fluent-chart { hxhydrate.IslandAttrs(cfg)... }></fluent-chart>
func IslandAttrs(cfg Config) templ.Attributes {
	attrs := templ.Attributes{}
	if cfg.Strategy != "" {
		attrs[AttrStrategy] = string(cfg.Strategy)
	}
	if cfg.Priority != "" {
		attrs[AttrPriority] = string(cfg.Priority)
	}
	if cfg.Timeout > 0 {
		attrs[AttrTimeout] = strconv.FormatInt(cfg.Timeout.Milliseconds(), 10)
	}
	return attrs
}

// Island renders tag as a custom element carrying the discovery attributes
// of cfg, with child rendered inside it as the server-rendered content.
//
//	@hxhydrate.Island("fluent-chart", hxhydrate.Config{Strategy: hxhydrate.StrategyViewport}, chartBody())
//
// tag must be a valid custom element name (lowercase, containing a hyphen).
func Island(tag string, cfg Config, child templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := validTag(tag); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<"+tag+renderAttrs(IslandAttrs(cfg))+">"); err != nil {
			return err
		}
		if child != nil {
			if err := child.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	})
}

// Lazy renders an island that activates when scrolled into view.
func Lazy(tag string, child templ.Component) templ.Component {
	return Island(tag, Config{Strategy: StrategyViewport}, child)
}

// Defer renders an island that activates once the page is idle.
func Defer(tag string, child templ.Component) templ.Component {
	return Island(tag, Config{Strategy: StrategyLazy}, child)
}

func renderAttrs(attrs templ.Attributes) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, k, html.EscapeString(fmt.Sprint(attrs[k])))
	}
	return b.String()
}

func validTag(tag string) error {
	if tag == "" || !strings.Contains(tag, "-") || tag != strings.ToLower(tag) {
		return fmt.Errorf("%w: invalid custom element name %q", ErrInvalidConfig, tag)
	}
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.' || r == '_') {
			return fmt.Errorf("%w: invalid custom element name %q", ErrInvalidConfig, tag)
		}
	}
	if tag[0] < 'a' || tag[0] > 'z' {
		return fmt.Errorf("%w: invalid custom element name %q", ErrInvalidConfig, tag)
	}
	return nil
}
