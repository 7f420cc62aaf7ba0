package venuebot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{
		"Alice",
		"DJ Bob",
		"  leading and trailing  ",
		"émilie",
		"名前",
		"",
	}
	for _, name := range names {
		token := EncodeName(name)
		decoded, err := DecodeName(token)
		require.NoError(t, err)
		assert.Equal(t, name, decoded)
	}
}

func TestDecodeNameInvalidBase64(t *testing.T) {
	t.Parallel()

	decoded, err := DecodeName("not valid base64!!!")
	assert.Empty(t, decoded)
	require.Error(t, err)

	decodeErr := &DecodeError{}
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "not valid base64!!!", decodeErr.Token)
	assert.Error(t, decodeErr.Unwrap())
}

func TestDecodeNameInvalidUTF8(t *testing.T) {
	t.Parallel()

	// Valid base64 encoding of the single byte 0xFF, which is not valid
	// UTF-8
	decoded, err := DecodeName("/w==")
	assert.Empty(t, decoded)
	require.Error(t, err)

	decodeErr := &DecodeError{}
	require.True(t, errors.As(err, &decodeErr))
	assert.NoError(t, decodeErr.Unwrap())
	assert.Contains(t, err.Error(), "cannot decode token")
}
