package mse

import (
	"crypto/cipher"
	"crypto/rc4"
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/mse")

const (
	// DiscardBytes 每个 RC4 实例使用前丢弃的密钥流字节数
	DiscardBytes = 1024

	// MaxKeyBits RC4 支持的最大密钥长度
	MaxKeyBits = 2048

	// AlgorithmRC4 RC4 算法名
	AlgorithmRC4 = "rc4"

	labelInitiator = "keyA"
	labelReceiver  = "keyB"
)

// Cipher MSE 方向密码对
//
// inbound 与 outbound 分别由独立的密钥初始化。
// Cipher 本身不是并发安全的：同一方向同一时刻只应有一个使用者。
type Cipher struct {
	inbound   cipher.Stream
	outbound  cipher.Stream
	initiator bool
}

// NewCipher 由共享密钥与内容标识创建密码对
//
// 发起方出站使用 keyA、入站使用 keyB；接收方相反。
func NewCipher(secret []byte, contentID types.ContentID, initiator bool) (*Cipher, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty shared secret", types.ErrInvalidArgument)
	}

	keyA := deriveKey(labelInitiator, secret, contentID)
	keyB := deriveKey(labelReceiver, secret, contentID)

	outKey, inKey := keyA, keyB
	if !initiator {
		outKey, inKey = keyB, keyA
	}

	outbound, err := newRC4(outKey)
	if err != nil {
		return nil, err
	}
	inbound, err := newRC4(inKey)
	if err != nil {
		return nil, err
	}

	logger.Debug("MSE 密码对已创建",
		"content", contentID.ShortString(),
		"initiator", initiator)

	return &Cipher{
		inbound:   inbound,
		outbound:  outbound,
		initiator: initiator,
	}, nil
}

// NewCipherForAlgorithm 按算法名创建密码对
//
// 接受 "rc4" 与 "arcfour"（大小写不敏感）。
func NewCipherForAlgorithm(algorithm string, secret []byte, contentID types.ContentID, initiator bool) (*Cipher, error) {
	switch strings.ToLower(algorithm) {
	case AlgorithmRC4, "arcfour":
		return NewCipher(secret, contentID, initiator)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// IsKeySizeSupported 判断 RC4 是否支持给定位数的密钥
func IsKeySizeSupported(bits int) (bool, error) {
	if bits <= 0 {
		return false, fmt.Errorf("%w: key size must be positive, got %d", types.ErrInvalidArgument, bits)
	}
	return bits <= MaxKeyBits, nil
}

// deriveKey 计算 SHA1(label || secret || skey)
func deriveKey(label string, secret []byte, skey types.ContentID) []byte {
	h := sha1.New()
	h.Write([]byte(label))
	h.Write(secret)
	h.Write(skey.Bytes())
	return h.Sum(nil)
}

// newRC4 创建 RC4 实例并丢弃前 DiscardBytes 字节密钥流
func newRC4(key []byte) (cipher.Stream, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mse: init rc4: %w", err)
	}
	var discard [DiscardBytes]byte
	c.XORKeyStream(discard[:], discard[:])
	return c, nil
}

// Encrypt 原地加密出站数据
func (c *Cipher) Encrypt(b []byte) {
	c.outbound.XORKeyStream(b, b)
}

// Decrypt 原地解密入站数据
func (c *Cipher) Decrypt(b []byte) {
	c.inbound.XORKeyStream(b, b)
}

// EncryptionStream 返回出站流密码
func (c *Cipher) EncryptionStream() cipher.Stream {
	return c.outbound
}

// DecryptionStream 返回入站流密码
func (c *Cipher) DecryptionStream() cipher.Stream {
	return c.inbound
}

// IsInitiator 是否为连接发起方
func (c *Cipher) IsInitiator() bool {
	return c.initiator
}
