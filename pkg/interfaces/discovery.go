package interfaces

import "github.com/dep2p/go-btpeer/pkg/types"

// ════════════════════════════════════════════════════════════════════════════
// PeerSource 接口（发现源）
// 实现位置：internal/discovery/source/, internal/discovery/dht/
// ════════════════════════════════════════════════════════════════════════════

// PeerSource 单个内容的节点发现源
//
// 由 PeerRegistry 在调度 goroutine 上轮询，两个方法都不得阻塞。
type PeerSource interface {
	// GetPeers 取出当前已收集、尚未取走的节点
	//
	// 每次调用都会清空内部队列，同一节点不会经由该源返回两次。
	GetPeers() []*types.Peer

	// Update 报告是否有可取的节点
	//
	// 队列为空时尝试调度一次后台收集；已有收集在进行时立即返回。
	Update() bool
}

// PeerSourceFactory 按内容 ID 提供发现源
//
// 实现必须按 ContentID 记忆化：同一 ID 的源最多创建一次。
type PeerSourceFactory interface {
	// PeerSource 返回指定内容的发现源
	PeerSource(id types.ContentID) PeerSource
}

// NamedSource 可选接口，为发现源提供用于日志和指标的名称
type NamedSource interface {
	Name() string
}

// EventSink 发现事件接收方
//
// 通常由负责建立连接的组件实现。
type EventSink interface {
	// FirePeerDiscovered 通知发现了一个新节点
	FirePeerDiscovered(id types.ContentID, peer *types.Peer)
}

// SourceEventSink 可选接口，接收方需要知道事件来自哪个发现源时实现
type SourceEventSink interface {
	EventSink

	// FirePeerDiscoveredFrom 通知发现了一个新节点，并附带发现源名称
	FirePeerDiscoveredFrom(id types.ContentID, peer *types.Peer, source string)
}
