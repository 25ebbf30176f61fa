package handshake

import (
	"fmt"

	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/handshake")

// Connection 握手阶段的连接视图
type Connection interface {
	// ContentID 连接所属内容
	ContentID() types.ContentID

	// RemotePeer 远端节点记录
	RemotePeer() *types.Peer

	// PostExtendedHandshake 发送扩展握手消息
	PostExtendedHandshake(h *ExtendedHandshake) error
}

// ============================================================================
//                              Handler
// ============================================================================

// Handler 本地扩展能力的宣告方
type Handler struct {
	payloads *PayloadFactory
	metrics  *metrics.Recorder
}

// NewHandler 创建 Handler，rec 可为 nil
func NewHandler(payloads *PayloadFactory, rec *metrics.Recorder) *Handler {
	return &Handler{payloads: payloads, metrics: rec}
}

// ProcessOutgoing 处理待发送的基础握手
//
// 本地扩展集合非空时设置扩展协议保留位。
func (h *Handler) ProcessOutgoing(id types.ContentID, hs *Handshake) {
	if !h.payloads.Payload(id).IsEmpty() {
		hs.Reserved.SetBit(ExtendedProtocolBit)
	}
}

// ProcessIncoming 处理收到的基础握手
//
// 本地扩展集合非空时发送扩展握手，返回是否已发送。
func (h *Handler) ProcessIncoming(conn Connection) (bool, error) {
	payload := h.payloads.Payload(conn.ContentID())
	if payload.IsEmpty() {
		return false, nil
	}
	if err := conn.PostExtendedHandshake(payload); err != nil {
		return false, fmt.Errorf("handshake: post extended handshake: %w", err)
	}
	h.metrics.IncExtendedHandshake(metrics.DirectionOutbound)
	logger.Debug("已发送扩展握手",
		"content", conn.ContentID().ShortString(),
		"peer", conn.RemotePeer().String(),
		"extensions", len(payload.Extensions))
	return true, nil
}

// ============================================================================
//                              Consumer
// ============================================================================

// Consumer 远端扩展握手的消费方
type Consumer struct {
	pool    pkgif.ConnectionPool
	emitter pkgif.Emitter
	metrics *metrics.Recorder
}

// NewConsumer 创建 Consumer
//
// emitter 与 rec 可为 nil。
func NewConsumer(pool pkgif.ConnectionPool, emitter pkgif.Emitter, rec *metrics.Recorder) *Consumer {
	return &Consumer{pool: pool, emitter: emitter, metrics: rec}
}

// Consume 处理远端扩展握手
//
// 负载携带合法端口时先更新 Peer 端口，再请求连接池解决重复连接。
func (c *Consumer) Consume(conn Connection, payload *ExtendedHandshake) {
	c.metrics.IncExtendedHandshake(metrics.DirectionInbound)

	id := conn.ContentID()
	peer := conn.RemotePeer()

	if payload.Port > 0 && payload.Port <= types.MaxPort {
		peer.SetPort(payload.Port)
		if c.pool != nil {
			c.pool.CheckDuplicateConnections(id, peer)
		}
	}

	logger.Debug("收到扩展握手",
		"content", id.ShortString(),
		"peer", peer.String(),
		"version", payload.Version,
		"extensions", len(payload.Extensions))

	if c.emitter != nil {
		evt := types.EvtExtendedHandshake{
			ContentID:  id,
			Peer:       peer,
			Extensions: payload.Extensions,
		}
		if err := c.emitter.Emit(evt); err != nil {
			logger.Debug("扩展握手事件发射失败", "error", err)
		}
	}
}
