package btpeer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/connmgr"
	"github.com/dep2p/go-btpeer/internal/core/handshake"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	"github.com/dep2p/go-btpeer/internal/core/mse"
	"github.com/dep2p/go-btpeer/internal/core/nat"
	"github.com/dep2p/go-btpeer/internal/core/torrents"
	"github.com/dep2p/go-btpeer/internal/discovery/dht"
	"github.com/dep2p/go-btpeer/internal/discovery/registry"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("btpeer")

// 生命周期超时
const (
	startTimeout = 30 * time.Second
	stopTimeout  = 15 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 已创建，未启动
	StateIdle NodeState = iota

	// StateStarting 启动中
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止，不可重新启动
	StateStopped
)

// String 返回状态的字符串表示
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node btpeer 节点
type Node struct {
	app *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	cfg        *config.Config
	bus        pkgif.EventBus
	torrents   pkgif.TorrentRegistry
	registry   *registry.Registry
	local      registry.LocalPeer
	pool       *connmgr.Pool
	negotiator *mse.Negotiator
	handler    *handshake.Handler
	consumer   *handshake.Consumer
	metrics    *metrics.Recorder
	dht        *dht.Service
	nat        *nat.Service

	mu    sync.RWMutex
	state NodeState
}

// New 创建节点但不启动
//
// 示例：
//
//	node, err := btpeer.New(ctx,
//	    btpeer.WithListenPort(51413),
//	    btpeer.WithDHT(false),
//	)
func New(_ context.Context, opts ...Option) (*Node, error) {
	cfg := newNodeConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	node := &Node{}
	app, err := buildFxApp(cfg, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	node.app = app
	return node, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	return node, nil
}

// Start 启动节点：执行所有模块的启动动作并开始轮询发现源
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStopped, StateStopping:
		return ErrNodeClosed
	case StateRunning, StateStarting:
		return ErrAlreadyStarted
	}

	n.state = StateStarting
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := n.app.Start(startCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		n.state = StateStopped
		return fmt.Errorf("start failed: %w", err)
	}
	n.state = StateRunning
	logger.Info("节点已启动",
		"peerID", n.local.ID.ShortString(),
		"port", n.local.Port,
		"dht", n.dht != nil,
		"nat", n.nat != nil)
	return nil
}

// Stop 停止节点，停止后不可重新启动
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStopped:
		return nil
	case StateIdle:
		n.state = StateStopped
		return nil
	}

	n.state = StateStopping
	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	err := n.app.Stop(stopCtx)
	n.state = StateStopped
	if err != nil {
		logger.Warn("节点停止时出错", "error", err)
		return fmt.Errorf("stop failed: %w", err)
	}
	logger.Info("节点已停止")
	return nil
}

// Close 使用默认超时停止节点
func (n *Node) Close() error {
	return n.Stop(context.Background())
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// IsRunning 节点是否在运行
func (n *Node) IsRunning() bool {
	return n.State() == StateRunning
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// PeerID 返回本地节点 ID
func (n *Node) PeerID() types.PeerID {
	return n.local.ID
}

// LocalPeer 返回本地节点（身份、地址、端口）
func (n *Node) LocalPeer() registry.LocalPeer {
	return n.local
}

// Config 返回节点使用的配置副本
func (n *Node) Config() *config.Config {
	return n.cfg.Clone()
}

// EventBus 返回事件总线，用于订阅发现与连接事件
func (n *Node) EventBus() pkgif.EventBus {
	return n.bus
}

// Torrents 返回内容状态提供方
func (n *Node) Torrents() pkgif.TorrentRegistry {
	return n.torrents
}

// RegisterContent 在内置登记表中登记内容
//
// 通过 WithTorrentRegistry 使用外部提供方时返回 types.ErrInvalidArgument。
func (n *Node) RegisterContent(id types.ContentID, st torrents.State) error {
	reg, ok := n.torrents.(*torrents.Registry)
	if !ok {
		return fmt.Errorf("%w: external torrent registry in use", types.ErrInvalidArgument)
	}
	return reg.Register(id, st)
}

// Pool 返回连接池
func (n *Node) Pool() *connmgr.Pool {
	return n.pool
}

// MetricsRegistry 返回 prometheus 指标注册表，指标禁用时为 nil
func (n *Node) MetricsRegistry() *prometheus.Registry {
	return n.metrics.Registry()
}

// DiscoveryRate 最近一分钟平均每秒发现的节点数
func (n *Node) DiscoveryRate() float64 {
	return n.metrics.DiscoveryRate()
}

// ════════════════════════════════════════════════════════════════════════════
//                              发现
// ════════════════════════════════════════════════════════════════════════════

// AddPeer 手动通知发现了一个节点，校验规则同发现源
func (n *Node) AddPeer(id types.ContentID, p *types.Peer) error {
	return n.registry.AddPeer(id, p)
}

// AddContentSource 为单个内容登记专属发现源（如 tracker）
func (n *Node) AddContentSource(id types.ContentID, src pkgif.PeerSource) error {
	return n.registry.AddContentSource(id, src)
}

// PollOnce 立即执行一个轮询周期
func (n *Node) PollOnce(ctx context.Context) registry.PollStats {
	return n.registry.PollOnce(ctx)
}
