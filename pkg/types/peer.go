package types

import (
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// PortUnknown 端口尚未获知（例如入站连接在扩展握手前）
const PortUnknown = -1

// MaxPort 合法端口上限
const MaxPort = 65535

// Peer 远端参与者
//
// 地址与可选身份在创建后不可变；端口（扩展握手后补全）与延迟可并发更新。
// 相等性基于地址+端口，双方都携带 PeerID 时基于 PeerID，延迟永不参与比较。
type Peer struct {
	ip  net.IP
	id  PeerID
	has bool

	port    atomic.Int64
	latency atomic.Int64
}

// NewPeer 创建 Peer
func NewPeer(ip net.IP, port int) *Peer {
	p := &Peer{ip: copyIP(ip)}
	p.port.Store(int64(port))
	return p
}

// NewPeerWithID 创建携带身份的 Peer
func NewPeerWithID(ip net.IP, port int, id PeerID) *Peer {
	p := NewPeer(ip, port)
	p.id = id
	p.has = true
	return p
}

// ParsePeer 解析 "host:port" 形式的地址
func ParsePeer(addr string) (*Peer, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid ip %q", ErrInvalidArgument, host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidArgument, portStr)
	}
	return NewPeer(ip, int(port)), nil
}

func copyIP(ip net.IP) net.IP {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

// IP 返回地址副本
func (p *Peer) IP() net.IP {
	return copyIP(p.ip)
}

// Port 返回端口，未知时为 PortUnknown
func (p *Peer) Port() int {
	return int(p.port.Load())
}

// SetPort 更新端口
func (p *Peer) SetPort(port int) {
	p.port.Store(int64(port))
}

// IsPortUnknown 端口是否未知
func (p *Peer) IsPortUnknown() bool {
	return p.Port() == PortUnknown
}

// ID 返回可选身份
func (p *Peer) ID() (PeerID, bool) {
	return p.id, p.has
}

// Latency 返回测得的延迟，0 表示未测量
func (p *Peer) Latency() time.Duration {
	return time.Duration(p.latency.Load())
}

// SetLatency 更新延迟
func (p *Peer) SetLatency(d time.Duration) {
	p.latency.Store(int64(d))
}

// Addr 返回 host:port 字符串
func (p *Peer) Addr() string {
	return net.JoinHostPort(p.ip.String(), strconv.Itoa(p.Port()))
}

// Key 返回去重键
//
// 携带身份的 Peer 使用身份作键，否则使用 地址:端口。
func (p *Peer) Key() string {
	if p.has {
		return "id/" + p.id.String()
	}
	return "addr/" + p.Addr()
}

// Equal 比较两个 Peer 是否表示同一参与者
func (p *Peer) Equal(o *Peer) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.has && o.has {
		return p.id == o.id
	}
	return p.ip.Equal(o.ip) && p.Port() == o.Port()
}

// Clone 返回值拷贝
func (p *Peer) Clone() *Peer {
	c := &Peer{ip: copyIP(p.ip), id: p.id, has: p.has}
	c.port.Store(p.port.Load())
	c.latency.Store(p.latency.Load())
	return c
}

// String 实现 fmt.Stringer
func (p *Peer) String() string {
	if p.has {
		return p.Addr() + "/" + p.id.ShortString()
	}
	return p.Addr()
}
