package hxhydrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxhydrate/lib/dom"
)

func ptr[T any](v T) *T { return &v }

func newBrowserEnv(t *testing.T) (*dom.Browser, Environment) {
	t.Helper()
	doc, err := dom.ParseString(`<body></body>`)
	require.NoError(t, err)
	b := dom.NewBrowser(doc)
	return b, FromBrowser(b)
}

func TestSatisfiesNil(t *testing.T) {
	_, env := newBrowserEnv(t)
	assert.True(t, Satisfies(env, nil))
	assert.True(t, Satisfies(env, &Conditions{}))
	assert.True(t, Satisfies(Environment{}, &Conditions{MediaQuery: "(x)", NetworkType: "4g", MinDeviceMemory: 4}))
}

func TestSatisfiesSkipsUnavailableSignals(t *testing.T) {
	_, env := newBrowserEnv(t)
	c := &Conditions{NetworkType: "4g", SaveData: ptr(false), MinDeviceMemory: 4, MinBatteryLevel: 0.5}
	assert.True(t, Satisfies(env, c))
}

func TestSatisfiesClauses(t *testing.T) {
	b, env := newBrowserEnv(t)
	b.Media.Set("(min-width: 800px)", true)
	b.Network.Set("4g", true)
	b.Device.SetMemory(4)
	b.Device.SetBattery(0.3)

	tests := []struct {
		name string
		c    Conditions
		want bool
	}{
		{"media matches", Conditions{MediaQuery: "(min-width: 800px)"}, true},
		{"media misses", Conditions{MediaQuery: "(min-width: 2000px)"}, false},
		{"network matches", Conditions{NetworkType: "4g"}, true},
		{"network misses", Conditions{NetworkType: "2g"}, false},
		{"save data matches", Conditions{SaveData: ptr(true)}, true},
		{"save data misses", Conditions{SaveData: ptr(false)}, false},
		{"memory enough", Conditions{MinDeviceMemory: 4}, true},
		{"memory short", Conditions{MinDeviceMemory: 8}, false},
		{"battery enough", Conditions{MinBatteryLevel: 0.2}, true},
		{"battery low", Conditions{MinBatteryLevel: 0.5}, false},
		{"motion not reduced", Conditions{ReducedMotion: ptr(false)}, true},
		{"motion reduced wanted", Conditions{ReducedMotion: ptr(true)}, false},
		{"all hold", Conditions{MediaQuery: "(min-width: 800px)", NetworkType: "4g", MinDeviceMemory: 2}, true},
		{"one fails", Conditions{MediaQuery: "(min-width: 800px)", NetworkType: "4g", MinDeviceMemory: 16}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.c
			assert.Equal(t, tt.want, Satisfies(env, &c))
		})
	}

	b.Media.Set(reducedMotionQuery, true)
	assert.True(t, Satisfies(env, &Conditions{ReducedMotion: ptr(true)}))
}

func TestSatisfiesIgnoresAwaitedClause(t *testing.T) {
	b, env := newBrowserEnv(t)
	b.Network.Set("3g", false)

	media := &Conditions{MediaQuery: "(min-width: 2000px)"}
	assert.False(t, satisfies(env, media, StrategyImmediate))
	assert.True(t, satisfies(env, media, StrategyMediaQuery))

	network := &Conditions{NetworkType: "4g"}
	assert.False(t, satisfies(env, network, StrategyImmediate))
	assert.True(t, satisfies(env, network, StrategyNetwork))
}
