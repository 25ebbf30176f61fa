package mse

import (
	"bytes"
	"crypto/rc4"
	"crypto/sha1"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var (
	testSecret  = []byte("shared-secret-from-dh-exchange")
	testContent = types.ContentID{0x01, 0x02, 0x03, 0x04, 0x05}
)

func newPair(t *testing.T) (*Cipher, *Cipher) {
	t.Helper()
	a, err := NewCipher(testSecret, testContent, true)
	require.NoError(t, err)
	b, err := NewCipher(testSecret, testContent, false)
	require.NoError(t, err)
	return a, b
}

func TestNewCipher_EmptySecret(t *testing.T) {
	_, err := NewCipher(nil, testContent, true)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestCipher_RoundTrip(t *testing.T) {
	initiator, receiver := newPair(t)
	assert.True(t, initiator.IsInitiator())
	assert.False(t, receiver.IsInitiator())

	msg := []byte("hello from the initiator")
	buf := append([]byte(nil), msg...)
	initiator.Encrypt(buf)
	assert.NotEqual(t, msg, buf)
	receiver.Decrypt(buf)
	assert.Equal(t, msg, buf)

	reply := []byte("and back from the receiver")
	buf = append([]byte(nil), reply...)
	receiver.Encrypt(buf)
	initiator.Decrypt(buf)
	assert.Equal(t, reply, buf)
}

func TestCipher_DirectionsIndependent(t *testing.T) {
	c, err := NewCipher(testSecret, testContent, true)
	require.NoError(t, err)

	plain := make([]byte, 32)
	out := append([]byte(nil), plain...)
	in := append([]byte(nil), plain...)
	c.Encrypt(out)
	c.Decrypt(in)
	assert.NotEqual(t, out, in)
}

func TestCipher_KeyDerivationAndDiscard(t *testing.T) {
	c, err := NewCipher(testSecret, testContent, true)
	require.NoError(t, err)

	h := sha1.New()
	h.Write([]byte("keyA"))
	h.Write(testSecret)
	h.Write(testContent.Bytes())
	ref, err := rc4.NewCipher(h.Sum(nil))
	require.NoError(t, err)

	want := make([]byte, DiscardBytes+16)
	ref.XORKeyStream(want, want)

	got := make([]byte, 16)
	c.Encrypt(got)
	assert.Equal(t, want[DiscardBytes:], got)
}

func TestCipher_DifferentContentDifferentKeys(t *testing.T) {
	a, err := NewCipher(testSecret, testContent, true)
	require.NoError(t, err)
	b, err := NewCipher(testSecret, types.ContentID{0xff}, true)
	require.NoError(t, err)

	x := make([]byte, 16)
	y := make([]byte, 16)
	a.Encrypt(x)
	b.Encrypt(y)
	assert.NotEqual(t, x, y)
}

func TestIsKeySizeSupported(t *testing.T) {
	ok, err := IsKeySizeSupported(160)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsKeySizeSupported(MaxKeyBits)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsKeySizeSupported(MaxKeyBits + 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsKeySizeSupported(0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = IsKeySizeSupported(-8)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestNewCipherForAlgorithm(t *testing.T) {
	for _, name := range []string{"rc4", "RC4", "arcfour"} {
		_, err := NewCipherForAlgorithm(name, testSecret, testContent, true)
		assert.NoError(t, err, name)
	}
	_, err := NewCipherForAlgorithm("aes-ctr", testSecret, testContent, true)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestWrapConn_Pipe(t *testing.T) {
	initiator, receiver := newPair(t)
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	a := initiator.WrapConn(left)
	b := receiver.WrapConn(right)

	msg := []byte("BitTorrent protocol over an encrypted pipe")
	orig := append([]byte(nil), msg...)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Write(msg)
		errCh <- err
	}()

	got := make([]byte, len(msg))
	_, err := io.ReadFull(b, got)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, orig, got)
	// 调用方缓冲区保持明文
	assert.Equal(t, orig, msg)
}

func TestWrapConn_CiphertextOnWire(t *testing.T) {
	initiator, _ := newPair(t)
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	a := initiator.WrapConn(left)
	msg := []byte("plaintext must not appear on the wire")

	go func() { _, _ = a.Write(msg) }()

	raw := make([]byte, len(msg))
	_, err := io.ReadFull(right, raw)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(raw, msg))
}

func TestNegotiator(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	n, err := NewNegotiator(types.PreferPlaintext, "")
	require.NoError(t, err)

	conn, encrypted, err := n.Negotiate(left, types.PreferPlaintext, testSecret, testContent, true)
	require.NoError(t, err)
	assert.False(t, encrypted)
	assert.Same(t, left, conn)

	conn, encrypted, err = n.Negotiate(left, types.RequireEncrypted, testSecret, testContent, true)
	require.NoError(t, err)
	assert.True(t, encrypted)
	assert.IsType(t, &Conn{}, conn)

	_, _, err = n.Negotiate(left, types.RequireEncrypted, nil, testContent, true)
	assert.ErrorIs(t, err, ErrEncryptionRequired)

	strict, err := NewNegotiator(types.RequirePlaintext, "rc4")
	require.NoError(t, err)
	_, _, err = strict.Negotiate(right, types.RequireEncrypted, testSecret, testContent, false)
	assert.ErrorIs(t, err, types.ErrIncompatiblePolicy)
}

func TestNewNegotiator_BadAlgorithm(t *testing.T) {
	_, err := NewNegotiator(types.PreferEncrypted, "chacha20")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Security.EncryptionPolicy = "require-encrypted"

	var n *Negotiator
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&n),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, types.RequireEncrypted, n.Policy())
}
