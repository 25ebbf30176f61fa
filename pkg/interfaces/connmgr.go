package interfaces

import "github.com/dep2p/go-btpeer/pkg/types"

// ConnectionPool 连接池
//
// 实现位置：internal/core/connmgr/
type ConnectionPool interface {
	// CheckDuplicateConnections 检查并关闭到同一远端的重复连接
	//
	// 保留哪一条由连接池的策略决定，结果是每个远端至多保留一条连接。
	CheckDuplicateConnections(id types.ContentID, peer *types.Peer)
}
