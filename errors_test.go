package hxhydrate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrTimeout,
		ErrUnimplementedStrategy,
		ErrUnknownStrategy,
		ErrActivationFailed,
		ErrInvalidConfig,
		ErrCanceled,
		ErrClosed,
		ErrNoDocument,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
		assert.Contains(t, a.Error(), "hxhydrate:")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"hook failure", &hookError{tag: "fluent-a", err: errors.New("boom")}, true},
		{"plain error", errors.New("flaky"), true},
		{"timeout", fmt.Errorf("%w after 1s", ErrTimeout), false},
		{"unimplemented", ErrUnimplementedStrategy, false},
		{"unknown strategy", ErrUnknownStrategy, false},
		{"invalid config", fmt.Errorf("%w: bad", ErrInvalidConfig), false},
		{"canceled", ErrCanceled, false},
		{"closed", ErrClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestHookErrorMatchesBoth(t *testing.T) {
	cause := errors.New("socket closed")
	err := error(&hookError{tag: "fluent-chat", err: cause})

	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsActivationFailure(err))
	assert.Contains(t, err.Error(), "fluent-chat")
	assert.Contains(t, err.Error(), "socket closed")
}

func TestHydrationError(t *testing.T) {
	cause := fmt.Errorf("%w after 500ms", ErrTimeout)
	err := error(&HydrationError{Kind: kindOf(cause), Tag: "fluent-map", Strategy: StrategyMediaQuery, Attempt: 1, Err: cause})

	var he *HydrationError
	assert.ErrorAs(t, err, &he)
	assert.Equal(t, KindTimeout, he.Kind)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsUnimplemented(err))
	assert.Contains(t, err.Error(), "fluent-map")
	assert.Contains(t, err.Error(), "media-query")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, kindOf(ErrTimeout))
	assert.Equal(t, KindUnimplemented, kindOf(ErrUnimplementedStrategy))
	assert.Equal(t, KindConfig, kindOf(ErrInvalidConfig))
	assert.Equal(t, KindConfig, kindOf(ErrUnknownStrategy))
	assert.Equal(t, KindCanceled, kindOf(ErrCanceled))
	assert.Equal(t, KindCanceled, kindOf(ErrClosed))
	assert.Equal(t, KindHook, kindOf(&hookError{tag: "x", err: errors.New("y")}))
}
