package mse

import (
	"fmt"
	"net"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// Negotiator 按加密策略决定连接是否加密
type Negotiator struct {
	policy    types.EncryptionPolicy
	algorithm string
}

// NewNegotiator 创建协商器
func NewNegotiator(policy types.EncryptionPolicy, algorithm string) (*Negotiator, error) {
	if algorithm == "" {
		algorithm = AlgorithmRC4
	}
	if _, err := NewCipherForAlgorithm(algorithm, []byte{0}, types.ContentID{}, true); err != nil {
		return nil, err
	}
	return &Negotiator{policy: policy, algorithm: algorithm}, nil
}

// NewNegotiatorFromConfig 从安全配置创建协商器
func NewNegotiatorFromConfig(cfg config.SecurityConfig) (*Negotiator, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	return NewNegotiator(policy, cfg.CipherAlgorithm)
}

// Policy 返回本地加密策略
func (n *Negotiator) Policy() types.EncryptionPolicy {
	return n.policy
}

// Negotiate 与远端策略协商并按需包装连接
//
// 返回的 bool 表示连接是否已加密。策略不兼容时返回 types.ErrIncompatiblePolicy。
func (n *Negotiator) Negotiate(conn net.Conn, remote types.EncryptionPolicy, secret []byte, contentID types.ContentID, initiator bool) (net.Conn, bool, error) {
	encrypted, err := types.SelectEncryption(n.policy, remote)
	if err != nil {
		return nil, false, err
	}
	if !encrypted {
		return conn, false, nil
	}
	if len(secret) == 0 {
		return nil, false, ErrEncryptionRequired
	}

	c, err := NewCipherForAlgorithm(n.algorithm, secret, contentID, initiator)
	if err != nil {
		return nil, false, fmt.Errorf("mse: negotiate: %w", err)
	}
	logger.Debug("连接已加密",
		"content", contentID.ShortString(),
		"local", n.policy,
		"remote", remote)
	return c.WrapConn(conn), true, nil
}
