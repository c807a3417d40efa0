package hxhydrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hydratedSnapshot(t *testing.T) (*Manager, Snapshot) {
	t.Helper()
	page := mustPage(t, `<body><fluent-b></fluent-b><fluent-a></fluent-a><fluent-a></fluent-a></body>`, "fluent-a", "fluent-b")
	m := newTestManager(t, page, fastOptions())
	require.NoError(t, settle(t, m.HydrateComponent("fluent-b", Config{Strategy: StrategyImmediate})))
	require.NoError(t, settle(t, m.HydrateComponent("fluent-a", Config{Strategy: StrategyImmediate})))
	settle(t, m.HydrateComponent("fluent-x", Config{Strategy: StrategyCustom}))
	return m, m.Snapshot()
}

func TestSnapshot(t *testing.T) {
	m, s := hydratedSnapshot(t)

	assert.Equal(t, m.ID(), s.Manager)
	assert.False(t, s.Taken.IsZero())
	require.Len(t, s.States, 3)
	assert.Equal(t, "fluent-a", s.States[0].Tag)
	assert.Equal(t, "fluent-b", s.States[1].Tag)
	assert.Equal(t, "fluent-x", s.States[2].Tag)
	assert.Equal(t, 3, s.Metrics.TotalComponents)
	assert.Equal(t, 1, s.Metrics.FailedComponents)
	assert.Len(t, s.Durations, 2)
	assert.Equal(t, 0, s.InFlight)

	st, ok := s.State("fluent-x")
	require.True(t, ok)
	assert.Equal(t, StatusError, st.Status)
	_, ok = s.State("fluent-missing")
	assert.False(t, ok)
}

func TestSnapshotEncoding(t *testing.T) {
	_, s := hydratedSnapshot(t)

	enc, err := NewEncoder([]byte("snapshot-key"))
	require.NoError(t, err)

	for _, sensitive := range []bool{false, true} {
		encoded, err := EncodeSnapshot(enc, s, sensitive)
		require.NoError(t, err)

		got, err := DecodeSnapshot(enc, encoded, sensitive)
		require.NoError(t, err)
		assert.Equal(t, s.Manager, got.Manager)
		assert.True(t, s.Taken.Equal(got.Taken))
		assert.Equal(t, s.Metrics, got.Metrics)
		assert.Equal(t, s.Durations, got.Durations)
		require.Len(t, got.States, len(s.States))
		for i := range s.States {
			assert.Equal(t, s.States[i].Tag, got.States[i].Tag)
			assert.Equal(t, s.States[i].Status, got.States[i].Status)
			assert.Equal(t, s.States[i].Error, got.States[i].Error)
			assert.Equal(t, s.States[i].Duration, got.States[i].Duration)
		}
	}
}

func TestSnapshotDecodeErrors(t *testing.T) {
	_, s := hydratedSnapshot(t)
	enc, err := NewEncoder([]byte("snapshot-key"))
	require.NoError(t, err)
	other, err := NewEncoder([]byte("other-key"))
	require.NoError(t, err)

	signed, err := EncodeSnapshot(enc, s, false)
	require.NoError(t, err)
	_, err = DecodeSnapshot(other, signed, false)
	assert.ErrorIs(t, err, ErrSnapshotSignature)

	sealed, err := EncodeSnapshot(enc, s, true)
	require.NoError(t, err)
	_, err = DecodeSnapshot(other, sealed, true)
	assert.ErrorIs(t, err, ErrSnapshotDecrypt)

	_, err = DecodeSnapshot(enc, "not-a-snapshot", false)
	assert.ErrorIs(t, err, ErrSnapshotFormat)
}
