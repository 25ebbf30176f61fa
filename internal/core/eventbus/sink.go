package eventbus

import (
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// Sink 将发现通知转成总线上的 types.EvtPeerDiscovered 事件
type Sink struct {
	emitter pkgif.Emitter
}

var _ pkgif.SourceEventSink = (*Sink)(nil)

// NewSink 创建 Sink
func NewSink(bus pkgif.EventBus) (*Sink, error) {
	em, err := bus.Emitter(new(types.EvtPeerDiscovered))
	if err != nil {
		return nil, err
	}
	return &Sink{emitter: em}, nil
}

// FirePeerDiscovered 实现 pkgif.EventSink
func (s *Sink) FirePeerDiscovered(id types.ContentID, peer *types.Peer) {
	s.FirePeerDiscoveredFrom(id, peer, "")
}

// FirePeerDiscoveredFrom 实现 pkgif.SourceEventSink
func (s *Sink) FirePeerDiscoveredFrom(id types.ContentID, peer *types.Peer, source string) {
	evt := types.EvtPeerDiscovered{ContentID: id, Peer: peer, Source: source}
	if err := s.emitter.Emit(evt); err != nil {
		logger.Debug("发现事件发射失败",
			"content", id.ShortString(),
			"peer", peer.String(),
			"error", err)
	}
}

// Close 关闭底层发射器
func (s *Sink) Close() error {
	return s.emitter.Close()
}
