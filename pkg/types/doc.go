// Package types 定义 btpeer 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 btpeer 内部包。
//
// # 文件组织
//
//   - ids.go        - PeerID, ContentID
//   - peer.go       - Peer（远端节点地址、端口、可选身份与延迟）
//   - encryption.go - EncryptionPolicy 加密策略格
//   - events.go     - EvtPeerDiscovered 等事件类型
//   - errors.go     - 公共错误定义
package types
