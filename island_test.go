package hxhydrate

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, c.Render(context.Background(), &b))
	return b.String()
}

func TestIslandAttrs(t *testing.T) {
	attrs := IslandAttrs(Config{Strategy: StrategyViewport, Priority: PriorityHigh, Timeout: 1500 * time.Millisecond})
	assert.Equal(t, templ.Attributes{
		AttrStrategy: "viewport",
		AttrPriority: "high",
		AttrTimeout:  "1500",
	}, attrs)

	assert.Empty(t, IslandAttrs(Config{}))
}

func TestIslandRender(t *testing.T) {
	got := render(t, Island("fluent-chart", Config{
		Strategy: StrategyViewport,
		Priority: PriorityHigh,
		Timeout:  1500 * time.Millisecond,
	}, text("<p>loading</p>")))

	assert.Equal(t,
		`<fluent-chart data-hydrate-priority="high" data-hydrate-strategy="viewport" data-hydrate-timeout="1500"><p>loading</p></fluent-chart>`,
		got)
}

func TestIslandVariants(t *testing.T) {
	assert.Equal(t, `<fluent-map data-hydrate-strategy="viewport"></fluent-map>`, render(t, Lazy("fluent-map", nil)))
	assert.Equal(t, `<fluent-chat data-hydrate-strategy="lazy">hi</fluent-chat>`, render(t, Defer("fluent-chat", text("hi"))))
}

func TestIslandRejectsInvalidTags(t *testing.T) {
	for _, tag := range []string{"", "chart", "Fluent-Chart", "1-chart", "fluent-<x>", "fluent chart"} {
		var b strings.Builder
		err := Island(tag, Config{Strategy: StrategyLazy}, nil).Render(context.Background(), &b)
		assert.ErrorIs(t, err, ErrInvalidConfig, tag)
		assert.Empty(t, b.String(), tag)
	}
}

func TestIslandRoundTripsThroughAutoHydrate(t *testing.T) {
	markup := render(t, Island("fluent-chart", Config{Strategy: StrategyImmediate, Priority: PriorityCritical}, text("<p>chart</p>")))
	page := mustPage(t, "<body>"+markup+"</body>", "fluent-chart")
	m := newTestManager(t, page, fastOptions())

	out, err := m.AutoHydrate(context.Background(), AutoOptions{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, PriorityCritical, out[0].Priority)
	assert.Equal(t, StatusHydrated, out[0].Status)
	assert.Equal(t, 1, page.HydratedCount("fluent-chart"))
}
