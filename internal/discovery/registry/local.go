package registry

import (
	"net"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// LocalPeer 本地节点：身份、监听地址与端口
type LocalPeer struct {
	ID   types.PeerID
	IP   net.IP // nil 表示任意地址
	Port int
}

// LocalPeerFromConfig 由身份配置解析本地节点
func LocalPeerFromConfig(cfg config.IdentityConfig) (LocalPeer, error) {
	id, err := cfg.ResolvePeerID()
	if err != nil {
		return LocalPeer{}, err
	}
	return LocalPeer{ID: id, IP: cfg.LocalIP(), Port: cfg.ListenPort}, nil
}

// Matches 节点是否指向本地节点自身
//
// 端口相同且地址为未指定地址、回环地址或配置的本地地址。
func (l LocalPeer) Matches(p *types.Peer) bool {
	if p == nil || p.Port() != l.Port {
		return false
	}
	ip := p.IP()
	if ip == nil {
		return false
	}
	if ip.IsUnspecified() || ip.IsLoopback() {
		return true
	}
	return l.IP != nil && ip.Equal(l.IP)
}

// Peer 返回本地节点的 Peer 表示
func (l LocalPeer) Peer() *types.Peer {
	ip := l.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	return types.NewPeerWithID(ip, l.Port, l.ID)
}
