// Package registry 实现 PeerRegistry：所有内容与发现源的唯一轮询者
//
// 单个调度 goroutine 按固定间隔轮询。每个周期遍历 TorrentRegistry 中的活跃内容：
//   - 内容专属源（AddContentSource 登记，如 tracker）总会被查询，私有内容也不例外
//   - 发现源工厂（如 DHT）只为非私有内容提供源
//
// 每个（内容，源）对独立查询，单个源的错误或 panic 不影响其余源。
// 同一周期同一源内按 Peer.Key 去重，跨源、跨周期的重复留给连接层处理。
//
// 接受的节点通过 pkgif.EventSink 通知；本地节点自身被静默丢弃。
package registry
