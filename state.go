package hxhydrate

import "time"

// Status is the lifecycle stage of a tag.
type Status string

const (
	StatusPending   Status = "pending"
	StatusHydrating Status = "hydrating"
	StatusHydrated  Status = "hydrated"
	StatusError     Status = "error"
)

// ComponentState is the lifecycle record kept for each distinct tag.
type ComponentState struct {
	Tag        string        `msgpack:"tag" json:"tag"`
	Strategy   Strategy      `msgpack:"strategy" json:"strategy"`
	Priority   Priority      `msgpack:"priority" json:"priority"`
	Status     Status        `msgpack:"status" json:"status"`
	StartTime  time.Time     `msgpack:"start" json:"startTime"`
	EndTime    time.Time     `msgpack:"end,omitempty" json:"endTime,omitempty"`
	RetryCount int           `msgpack:"retries" json:"retryCount"`
	MaxRetries int           `msgpack:"max_retries" json:"maxRetries"`
	Error      string        `msgpack:"error,omitempty" json:"error,omitempty"`
	Duration   time.Duration `msgpack:"duration,omitempty" json:"duration,omitempty"`

	err error
}

// Err returns the terminal error, if any.
func (s ComponentState) Err() error {
	return s.err
}

// canTransition enforces pending -> hydrating -> {hydrated | error}, with
// error -> hydrating reserved for retries.
func canTransition(from, to Status, retry bool) bool {
	switch from {
	case StatusPending:
		return to == StatusHydrating
	case StatusHydrating:
		return to == StatusHydrated || to == StatusError
	case StatusError:
		return to == StatusHydrating && retry
	}
	return false
}
