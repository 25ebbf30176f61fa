package source

import (
	"context"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// StaticCollector 返回固定节点列表的 Collector
//
// 用于手工指定的节点，每次收集都输出全部节点的拷贝。
type StaticCollector struct {
	peers []*types.Peer
}

// NewStaticCollector 创建静态 Collector
func NewStaticCollector(peers ...*types.Peer) *StaticCollector {
	return &StaticCollector{peers: peers}
}

// CollectPeers 实现 Collector
func (c *StaticCollector) CollectPeers(ctx context.Context, emit func(*types.Peer)) error {
	for _, p := range c.peers {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(p.Clone())
	}
	return nil
}
