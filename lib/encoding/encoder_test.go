package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Tag      string        `msgpack:"tag"`
	Retries  int           `msgpack:"retries"`
	Hydrated bool          `msgpack:"hydrated"`
	Elapsed  time.Duration `msgpack:"elapsed"`
	At       time.Time     `msgpack:"at"`
}

func newTestEncoder(t *testing.T, key string) *Encoder {
	t.Helper()
	enc, err := NewEncoder([]byte(key))
	require.NoError(t, err)
	return enc
}

// tamper changes the first character so the payload no longer matches.
func tamper(s string) string {
	c := byte('A')
	if s[0] == 'A' {
		c = 'B'
	}
	return string(c) + s[1:]
}

func TestNewEncoder(t *testing.T) {
	_, err := NewEncoder([]byte("short"))
	require.NoError(t, err)

	_, err = NewEncoder([]byte("this-is-a-32-byte-key-for-aes!!!"))
	require.NoError(t, err)

	_, err = NewEncoder([]byte("a-key-that-is-much-longer-than-thirty-two-bytes"))
	require.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	original := record{
		Tag:      "fluent-chart",
		Retries:  2,
		Hydrated: true,
		Elapsed:  42 * time.Millisecond,
		At:       time.UnixMilli(1_700_000_000_000).UTC(),
	}

	for _, sensitive := range []bool{false, true} {
		enc := newTestEncoder(t, "test-key")

		encoded, err := enc.Encode(original, sensitive)
		require.NoError(t, err)
		require.NotEmpty(t, encoded)
		if !sensitive {
			assert.Contains(t, encoded, ".")
		}

		var decoded record
		require.NoError(t, enc.Decode(encoded, sensitive, &decoded))
		assert.Equal(t, original.Tag, decoded.Tag)
		assert.Equal(t, original.Retries, decoded.Retries)
		assert.Equal(t, original.Hydrated, decoded.Hydrated)
		assert.Equal(t, original.Elapsed, decoded.Elapsed)
		assert.True(t, original.At.Equal(decoded.At))
	}
}

func TestSignatureVerificationFailure(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	encoded, err := enc.Encode(record{Tag: "fluent-a"}, false)
	require.NoError(t, err)

	var decoded record
	err = enc.Decode(tamper(encoded), false, &decoded)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDecryptionFailure(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	encoded, err := enc.Encode(record{Tag: "fluent-a"}, true)
	require.NoError(t, err)

	var decoded record
	err = enc.Decode(tamper(encoded), true, &decoded)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestInvalidFormat(t *testing.T) {
	enc := newTestEncoder(t, "test-key")

	var decoded record
	assert.ErrorIs(t, enc.Decode("invalidbase64withoutseparator", false, &decoded), ErrInvalidFormat)
	assert.ErrorIs(t, enc.Decode("!!!.###", false, &decoded), ErrInvalidFormat)
	assert.ErrorIs(t, enc.Decode("AAAA", true, &decoded), ErrInvalidFormat)
}

func TestDifferentKeysCannotDecode(t *testing.T) {
	enc1 := newTestEncoder(t, "key-one")
	enc2 := newTestEncoder(t, "key-two")

	encoded, err := enc1.Encode(record{Tag: "fluent-a"}, false)
	require.NoError(t, err)

	var decoded record
	assert.ErrorIs(t, enc2.Decode(encoded, false, &decoded), ErrSignatureInvalid)

	sealed, err := enc1.Encode(record{Tag: "fluent-a"}, true)
	require.NoError(t, err)
	assert.ErrorIs(t, enc2.Decode(sealed, true, &decoded), ErrDecryptFailed)
}
