package interfaces

import "context"

// 端口映射协议
const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// PortMapper NAT 端口映射能力
//
// 实现位置：internal/core/nat/
type PortMapper interface {
	// MapPort 请求将本地端口映射到网关
	//
	// address 为本地监听地址（可为空表示任意地址），protocol 取 ProtocolTCP 或 ProtocolUDP。
	MapPort(ctx context.Context, port int, address, protocol, description string) error
}
