package config

import (
	"fmt"
	"net"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// DefaultPeerIDPrefix 默认的 Azureus 风格客户端前缀
const DefaultPeerIDPrefix = "-BP0100-"

// IdentityConfig 本地节点身份配置
//
// 本地节点 = PeerID + 监听地址 + 监听端口，PeerRegistry 用它过滤自身。
type IdentityConfig struct {
	// PeerID 固定的节点 ID（40 位十六进制），为空时按 PeerIDPrefix 随机生成
	PeerID string `json:"peer_id,omitempty"`

	// PeerIDPrefix 随机生成 PeerID 时使用的前缀
	PeerIDPrefix string `json:"peer_id_prefix"`

	// ListenPort 对外宣告的 TCP 监听端口
	ListenPort int `json:"listen_port"`

	// LocalAddress 本地监听地址，为空表示任意地址
	LocalAddress string `json:"local_address,omitempty"`

	// ClientVersion 扩展握手中宣告的客户端版本
	ClientVersion string `json:"client_version"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		PeerIDPrefix:  DefaultPeerIDPrefix,
		ListenPort:    6881,
		ClientVersion: "btpeer 0.1.0",
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > types.MaxPort {
		return fmt.Errorf("%w: listen port %d out of range", types.ErrInvalidArgument, c.ListenPort)
	}
	if len(c.PeerIDPrefix) > types.IDLength {
		return fmt.Errorf("%w: peer id prefix longer than %d bytes", types.ErrInvalidArgument, types.IDLength)
	}
	if c.PeerID != "" {
		if _, err := c.ResolvePeerID(); err != nil {
			return err
		}
	}
	if c.LocalAddress != "" && net.ParseIP(c.LocalAddress) == nil {
		return fmt.Errorf("%w: invalid local address %q", types.ErrInvalidArgument, c.LocalAddress)
	}
	return nil
}

// ResolvePeerID 返回配置的 PeerID，未配置时随机生成
func (c IdentityConfig) ResolvePeerID() (types.PeerID, error) {
	if c.PeerID == "" {
		return types.RandomPeerID(c.PeerIDPrefix)
	}
	id, err := types.PeerIDFromHex(c.PeerID)
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	return id, nil
}

// LocalIP 返回解析后的本地地址，未配置时为 nil
func (c IdentityConfig) LocalIP() net.IP {
	if c.LocalAddress == "" {
		return nil
	}
	return net.ParseIP(c.LocalAddress)
}
