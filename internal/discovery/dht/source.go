package dht

import (
	"context"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/discovery/source"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// SourceName DHT 发现源名称，用于日志和指标
const SourceName = "dht"

// Source 单个内容的 DHT 收集器
type Source struct {
	service  *Service
	id       types.ContentID
	maxPeers int
}

var _ source.Collector = (*Source)(nil)

// NewSource 创建收集器，maxPeers <= 0 时使用默认上限
func NewSource(service *Service, id types.ContentID, maxPeers int) *Source {
	if maxPeers <= 0 {
		maxPeers = config.DefaultDHTConfig().MaxPeersPerLookup
	}
	return &Source{service: service, id: id, maxPeers: maxPeers}
}

// CollectPeers 执行一次查询，最多交付 maxPeers 个节点
//
// 达到上限后返回并中止查询，其余结果被丢弃。
func (s *Source) CollectPeers(ctx context.Context, emit func(*types.Peer)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peers, err := s.service.GetPeers(ctx, s.id)
	if err != nil {
		return err
	}
	n := 0
	for p, err := range peers.Sequence(ctx) {
		if err != nil {
			return err
		}
		emit(p)
		n++
		if n >= s.maxPeers {
			logger.Debug("DHT 查询结果达到上限", "content", s.id.String(), "max", s.maxPeers)
			break
		}
	}
	return nil
}

// ============================================================================
//                              Factory
// ============================================================================

// Factory DHT 发现源工厂，每个内容 ID 至多创建一个源
type Factory struct {
	*source.MemoizedFactory
}

var (
	_ pkgif.PeerSourceFactory = (*Factory)(nil)
	_ pkgif.NamedSource       = (*Factory)(nil)
)

// NewFactory 创建工厂，所有源共享 exec 的 worker 预算
func NewFactory(service *Service, exec *source.Executor, maxPeers int) *Factory {
	return &Factory{
		MemoizedFactory: source.NewMemoizedFactory(SourceName, func(id types.ContentID) pkgif.PeerSource {
			return source.NewScheduled(SourceName, NewSource(service, id, maxPeers), exec)
		}),
	}
}
