package hxhydrate

import (
	"errors"
	"fmt"
)

// Sentinel errors for activation.
var (
	ErrTimeout               = errors.New("hxhydrate: activation timed out")
	ErrUnimplementedStrategy = errors.New("hxhydrate: strategy not implemented")
	ErrUnknownStrategy       = errors.New("hxhydrate: unknown strategy")
	ErrActivationFailed      = errors.New("hxhydrate: activation hook failed")
	ErrInvalidConfig         = errors.New("hxhydrate: invalid configuration")
	ErrCanceled              = errors.New("hxhydrate: activation canceled")
	ErrClosed                = errors.New("hxhydrate: manager closed")
	ErrNoDocument            = errors.New("hxhydrate: no document in environment")
)

// ErrorKind classifies a HydrationError.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindUnimplemented ErrorKind = "unimplemented"
	KindHook          ErrorKind = "hook"
	KindConfig        ErrorKind = "config"
	KindCanceled      ErrorKind = "canceled"
)

// HydrationError describes a failed activation of one tag.
type HydrationError struct {
	Kind     ErrorKind
	Tag      string
	Strategy Strategy
	Attempt  int
	Err      error
}

// Error implements the error interface.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("hxhydrate: %s %s (strategy=%s attempt=%d): %v", e.Kind, e.Tag, e.Strategy, e.Attempt, e.Err)
}

// Unwrap returns the underlying cause.
func (e *HydrationError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is an activation timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsActivationFailure reports whether a component hook failed.
func IsActivationFailure(err error) bool {
	return errors.Is(err, ErrActivationFailed)
}

// IsUnimplemented reports whether the strategy is not implemented.
func IsUnimplemented(err error) bool {
	return errors.Is(err, ErrUnimplementedStrategy)
}

// IsRetryable reports whether the retry controller may run the strategy
// again after err. Timeouts are final because the timeout budget covers
// the whole activation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnimplementedStrategy),
		errors.Is(err, ErrUnknownStrategy),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrCanceled),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrTimeout):
		return false
	}
	return true
}

// hookError wraps a component hook failure so it matches ErrActivationFailed
// while keeping the original cause reachable.
type hookError struct {
	tag string
	err error
}

func (e *hookError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrActivationFailed, e.tag, e.err)
}

func (e *hookError) Unwrap() []error {
	return []error{ErrActivationFailed, e.err}
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrUnimplementedStrategy):
		return KindUnimplemented
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnknownStrategy):
		return KindConfig
	case errors.Is(err, ErrCanceled), errors.Is(err, ErrClosed):
		return KindCanceled
	default:
		return KindHook
	}
}
