package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentIDFromHex(t *testing.T) {
	s := strings.Repeat("ab", IDLength)
	id, err := ContentIDFromHex(s)
	require.NoError(t, err)
	assert.Equal(t, s, id.String())
	assert.Equal(t, "abababab", id.ShortString())

	_, err = ContentIDFromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidContentID)

	_, err = ContentIDFromHex("zz")
	assert.ErrorIs(t, err, ErrInvalidContentID)
}

func TestRandomPeerID(t *testing.T) {
	a, err := RandomPeerID("-BP0100-")
	require.NoError(t, err)
	b, err := RandomPeerID("-BP0100-")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(a[:]), "-BP0100-"))
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsEmpty())
}

func TestPeerIDFromBytes(t *testing.T) {
	_, err := PeerIDFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPeerID)

	id, err := PeerIDFromBytes(make([]byte, IDLength))
	require.NoError(t, err)
	assert.True(t, id.IsEmpty())
}
