package types

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeer_Equal(t *testing.T) {
	t.Run("地址+端口", func(t *testing.T) {
		a := NewPeer(net.ParseIP("1.2.3.4"), 6881)
		b := NewPeer(net.ParseIP("1.2.3.4"), 6881)
		c := NewPeer(net.ParseIP("1.2.3.4"), 6882)

		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Key(), b.Key())
		assert.False(t, a.Equal(c))
	})

	t.Run("延迟不参与比较", func(t *testing.T) {
		a := NewPeer(net.ParseIP("1.2.3.4"), 6881)
		b := NewPeer(net.ParseIP("1.2.3.4"), 6881)
		a.SetLatency(50 * time.Millisecond)

		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("身份优先", func(t *testing.T) {
		id, err := RandomPeerID("-BP0100-")
		require.NoError(t, err)

		a := NewPeerWithID(net.ParseIP("1.2.3.4"), PortUnknown, id)
		b := NewPeerWithID(net.ParseIP("1.2.3.4"), 6881, id)
		key := a.Key()

		assert.True(t, a.Equal(b))
		a.SetPort(6881)
		assert.Equal(t, key, a.Key(), "端口更新后键保持稳定")
	})
}

func TestPeer_Clone(t *testing.T) {
	a := NewPeer(net.ParseIP("10.0.0.1"), 51413)
	c := a.Clone()
	c.SetPort(1)

	assert.Equal(t, 51413, a.Port())
	assert.Equal(t, 1, c.Port())
}

func TestParsePeer(t *testing.T) {
	p, err := ParsePeer("5.6.7.8:6881")
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", p.IP().String())
	assert.Equal(t, 6881, p.Port())

	_, err = ParsePeer("not-an-ip:1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	for _, addr := range []string{"1.2.3.4:65536", "1.2.3.4:4294967376", "1.2.3.4:-1"} {
		_, err = ParsePeer(addr)
		assert.ErrorIs(t, err, ErrInvalidArgument, addr)
	}
}

func TestPeer_PortKeepsFullRange(t *testing.T) {
	p := NewPeer(net.ParseIP("1.2.3.4"), 4294967376)
	assert.Equal(t, 4294967376, p.Port())

	p.SetPort(70000)
	assert.Equal(t, 70000, p.Port())
}

func TestPeer_PortUnknown(t *testing.T) {
	p := NewPeer(net.ParseIP("1.2.3.4"), PortUnknown)
	assert.True(t, p.IsPortUnknown())
}
