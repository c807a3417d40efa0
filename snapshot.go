package hxhydrate

import (
	"errors"
	"sort"
	"time"

	"github.com/pthm/hxhydrate/lib/encoding"
)

// Snapshot errors.
var (
	ErrSnapshotFormat    = errors.New("hxhydrate: invalid snapshot format")
	ErrSnapshotSignature = errors.New("hxhydrate: snapshot signature invalid")
	ErrSnapshotDecrypt   = errors.New("hxhydrate: snapshot decryption failed")
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// NewEncoder creates a snapshot encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// Snapshot is a point-in-time copy of a manager's state for tooling.
type Snapshot struct {
	Manager   string           `msgpack:"manager" json:"manager"`
	Taken     time.Time        `msgpack:"taken" json:"taken"`
	States    []ComponentState `msgpack:"states" json:"states"`
	Metrics   Metrics          `msgpack:"metrics" json:"metrics"`
	Durations []DurationStat   `msgpack:"durations" json:"durations"`
	InFlight  int              `msgpack:"inflight" json:"inFlight"`
}

// Snapshot captures states (sorted by tag), metrics and durations.
func (m *Manager) Snapshot() Snapshot {
	states := m.GetComponentStates()
	list := make([]ComponentState, 0, len(states))
	for _, st := range states {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Tag < list[j].Tag })

	return Snapshot{
		Manager:   m.id,
		Taken:     time.Now(),
		States:    list,
		Metrics:   m.GetMetrics(),
		Durations: m.Durations(),
		InFlight:  m.InFlight(),
	}
}

// State returns the record for tag.
func (s Snapshot) State(tag string) (ComponentState, bool) {
	for _, st := range s.States {
		if st.Tag == tag {
			return st, true
		}
	}
	return ComponentState{}, false
}

// EncodeSnapshot signs s, or encrypts it when sensitive is set.
func EncodeSnapshot(enc *Encoder, s Snapshot, sensitive bool) (string, error) {
	return enc.Encode(s, sensitive)
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(enc *Encoder, encoded string, sensitive bool) (Snapshot, error) {
	var s Snapshot
	if err := enc.Decode(encoded, sensitive, &s); err != nil {
		return Snapshot{}, wrapEncodingError(err)
	}
	return s, nil
}

// wrapEncodingError maps encoding package errors onto hxhydrate sentinels.
func wrapEncodingError(err error) error {
	switch {
	case errors.Is(err, encoding.ErrInvalidFormat):
		return ErrSnapshotFormat
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return ErrSnapshotSignature
	case errors.Is(err, encoding.ErrDecryptFailed):
		return ErrSnapshotDecrypt
	}
	return err
}
