package interfaces

import "github.com/dep2p/go-btpeer/pkg/types"

// Descriptor 单个内容的运行状态
type Descriptor interface {
	// IsActive 是否处于活跃（下载/做种）状态
	IsActive() bool

	// IsPrivate 是否为私有内容（禁止 DHT 等公共发现）
	IsPrivate() bool

	// IsSeed 本地是否持有完整内容
	IsSeed() bool

	// CompletePieces 已完成的分片数
	CompletePieces() int
}

// TorrentRegistry 内容状态提供方（外部协作者）
type TorrentRegistry interface {
	// Descriptor 返回内容状态，不存在时 ok 为 false
	Descriptor(id types.ContentID) (d Descriptor, ok bool)

	// IsSupportedAndActive 内容是否已注册且活跃
	IsSupportedAndActive(id types.ContentID) bool

	// ContentIDs 返回当前已注册的内容 ID
	ContentIDs() []types.ContentID
}
