package hxhydrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingComponent(t *testing.T) {
	boom := errors.New("boom")
	rc := &RecordingComponent{FailTimes: 1, HydrateErr: boom}

	assert.ErrorIs(t, rc.Hydrate(context.Background()), boom)
	assert.NoError(t, rc.Hydrate(context.Background()))
	assert.Equal(t, 2, rc.Calls())

	assert.False(t, rc.Ready())
	assert.False(t, rc.IsConnected())
	rc.Connect()
	rc.SetupEventListeners()
	assert.True(t, rc.IsConnected())
	assert.True(t, rc.Ready())

	var _ Hydrater = rc
	var _ Connector = rc
	var _ ListenerSetup = rc
}

func TestRecordingComponentDelayHonoursContext(t *testing.T) {
	rc := &RecordingComponent{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rc.Hydrate(ctx), context.DeadlineExceeded)
}

func TestRecordingComponentGenericFailure(t *testing.T) {
	rc := &RecordingComponent{FailTimes: 1}
	err := rc.Hydrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hydrate call 1")
}

func TestNewTestPage(t *testing.T) {
	page, err := NewTestPage(`<body><fluent-a></fluent-a><fluent-a></fluent-a><fluent-b></fluent-b></body>`, "fluent-a")
	require.NoError(t, err)

	as := page.Elements("fluent-a")
	require.Len(t, as, 2)
	require.NotNil(t, Recorder(as[0]))
	assert.NotSame(t, Recorder(as[0]), Recorder(as[1]))
	assert.Nil(t, Recorder(page.Elements("fluent-b")[0]))
	assert.Nil(t, page.Elements("[["))

	page.Show("fluent-a")
	assert.True(t, page.Browser.Viewport.IsVisible(as[1]))
	assert.Equal(t, 0, page.HydratedCount("fluent-a"))
}

func TestWaitForStatusTimesOut(t *testing.T) {
	page := mustPage(t, `<body><fluent-a></fluent-a></body>`)
	m := newTestManager(t, page, fastOptions())

	err := WaitForStatus(m, "fluent-a", StatusHydrated, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Contains(t, err.Error(), "none")
}
