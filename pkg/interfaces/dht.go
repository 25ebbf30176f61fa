package interfaces

import (
	"context"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// DHTLookup DHT 查询后端
//
// DHT 路由表与 Kademlia 查找算法作为黑盒使用，这里只约定查询和公告两个动作。
// 实现位置：internal/discovery/dht/mainline.go
type DHTLookup interface {
	// Start 启动后端（绑定端口、引导）
	Start(ctx context.Context) error

	// GetPeers 异步查询内容的节点
	//
	// 成功发起后立即返回；每发现一个节点调用一次 onPeer，
	// 查询结束时恰好调用一次 onDone。发起失败时返回错误且不会调用回调。
	GetPeers(ctx context.Context, id types.ContentID, onPeer func(*types.Peer), onDone func(error)) error

	// Announce 将本地节点公告为内容的提供者
	Announce(ctx context.Context, id types.ContentID, port int) error

	// Port 返回后端实际绑定的 UDP 端口
	Port() int

	// Close 关闭后端
	Close() error
}
