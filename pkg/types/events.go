package types

// ============================================================================
//                              发现事件
// ============================================================================

// EvtPeerDiscovered 发现新节点事件
//
// 由 PeerRegistry 在每个轮询周期内对新接受的节点各发出一次。
// 同一周期同一发现源内已去重，跨周期/跨源的重复由连接层处理。
type EvtPeerDiscovered struct {
	// ContentID 所属内容
	ContentID ContentID

	// Peer 发现的节点
	Peer *Peer

	// Source 发现源名称（可能为空）
	Source string
}

// ============================================================================
//                              连接事件
// ============================================================================

// EvtDuplicateConnectionClosed 重复连接被关闭事件
type EvtDuplicateConnectionClosed struct {
	// ContentID 所属内容
	ContentID ContentID

	// Peer 远端节点
	Peer *Peer

	// ConnID 被关闭的连接 ID
	ConnID string
}

// EvtExtendedHandshake 扩展握手完成事件
type EvtExtendedHandshake struct {
	// ContentID 所属内容
	ContentID ContentID

	// Peer 远端节点
	Peer *Peer

	// Extensions 远端声明的扩展
	Extensions map[string]int
}
