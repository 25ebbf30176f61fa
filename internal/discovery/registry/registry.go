package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("discovery/registry")

// contentSourceName 未命名的内容专属源使用的名称
const contentSourceName = "content"

// ============================================================================
//                              Registry
// ============================================================================

// Registry 节点发现的轮询中枢
type Registry struct {
	torrents  pkgif.TorrentRegistry
	sink      pkgif.EventSink
	local     LocalPeer
	factories []pkgif.PeerSourceFactory
	interval  time.Duration
	clk       clock.Clock
	rec       *metrics.Recorder

	mu             sync.RWMutex
	contentSources map[types.ContentID][]pkgif.PeerSource

	// pollMu 串行化轮询周期
	pollMu sync.Mutex

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// PollStats 一个轮询周期的统计
type PollStats struct {
	// Contents 被轮询的内容数
	Contents int
	// Sources 被查询的（内容，源）对数
	Sources int
	// Peers 接受并通知的节点数
	Peers int
	// Errors 失败的（内容，源）对数
	Errors int
}

// Option Registry 选项
type Option func(*Registry)

// WithFactories 添加发现源工厂，nil 被忽略
func WithFactories(factories ...pkgif.PeerSourceFactory) Option {
	return func(r *Registry) {
		for _, f := range factories {
			if f != nil {
				r.factories = append(r.factories, f)
			}
		}
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		if clk != nil {
			r.clk = clk
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Registry) {
		r.rec = rec
	}
}

// NewRegistry 创建 Registry
func NewRegistry(torrents pkgif.TorrentRegistry, sink pkgif.EventSink, local LocalPeer, opts ...Option) (*Registry, error) {
	if torrents == nil || sink == nil {
		return nil, fmt.Errorf("%w: registry requires torrents and event sink", types.ErrInvalidArgument)
	}
	r := &Registry{
		torrents:       torrents,
		sink:           sink,
		local:          local,
		interval:       config.DefaultDiscoveryConfig().PollInterval.Std(),
		clk:            clock.New(),
		contentSources: make(map[types.ContentID][]pkgif.PeerSource),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LocalPeer 返回本地节点
func (r *Registry) LocalPeer() LocalPeer {
	return r.local
}

// AddContentSource 为单个内容登记专属发现源
//
// 专属源对私有内容同样生效。
func (r *Registry) AddContentSource(id types.ContentID, src pkgif.PeerSource) error {
	if src == nil {
		return fmt.Errorf("%w: nil peer source", types.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentSources[id] = append(r.contentSources[id], src)
	return nil
}

// RemoveContentSources 移除内容的全部专属源，返回移除数量
func (r *Registry) RemoveContentSources(id types.ContentID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.contentSources[id])
	delete(r.contentSources, id)
	return n
}

// AddPeer 通知发现了一个节点
//
// 端口未知或越界时返回 types.ErrInvalidArgument；本地节点自身被静默丢弃。
func (r *Registry) AddPeer(id types.ContentID, p *types.Peer) error {
	_, err := r.addPeer(id, p, "")
	return err
}

func (r *Registry) addPeer(id types.ContentID, p *types.Peer, source string) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("%w: nil peer", types.ErrInvalidArgument)
	}
	if p.IsPortUnknown() || p.Port() < 0 || p.Port() > types.MaxPort {
		return false, fmt.Errorf("%w: peer %s has invalid port %d", types.ErrInvalidArgument, p, p.Port())
	}
	if r.local.Matches(p) {
		logger.Debug("丢弃本地节点", "content", id.ShortString(), "peer", p.String())
		return false, nil
	}

	if s, ok := r.sink.(pkgif.SourceEventSink); ok && source != "" {
		s.FirePeerDiscoveredFrom(id, p, source)
	} else {
		r.sink.FirePeerDiscovered(id, p)
	}
	return true, nil
}

// ============================================================================
//                              轮询
// ============================================================================

// namedSource 带名称的发现源
type namedSource struct {
	name string
	src  pkgif.PeerSource
}

// sourcesFor 返回内容本周期要查询的发现源
func (r *Registry) sourcesFor(id types.ContentID, private bool) []namedSource {
	r.mu.RLock()
	content := r.contentSources[id]
	out := make([]namedSource, 0, len(content)+len(r.factories))
	for _, src := range content {
		out = append(out, namedSource{name: sourceName(src, contentSourceName), src: src})
	}
	r.mu.RUnlock()

	if private {
		return out
	}
	for _, f := range r.factories {
		src := f.PeerSource(id)
		if src == nil {
			continue
		}
		out = append(out, namedSource{name: sourceName(src, sourceName(f, fmt.Sprintf("%T", f))), src: src})
	}
	return out
}

func sourceName(v any, fallback string) string {
	if n, ok := v.(pkgif.NamedSource); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}

// PollOnce 执行一个轮询周期
//
// 与调度 goroutine 的周期串行执行。
func (r *Registry) PollOnce(ctx context.Context) PollStats {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	var stats PollStats
	for _, id := range r.torrents.ContentIDs() {
		if ctx.Err() != nil {
			break
		}
		d, ok := r.torrents.Descriptor(id)
		if !ok || !d.IsActive() {
			continue
		}
		stats.Contents++
		for _, ns := range r.sourcesFor(id, d.IsPrivate()) {
			stats.Sources++
			n, err := r.pollSource(id, ns)
			stats.Peers += n
			r.rec.AddPeers(ns.name, n)
			if err != nil {
				stats.Errors++
				r.rec.IncSourceError(ns.name)
				logger.Warn("发现源查询失败",
					"content", id.ShortString(),
					"source", ns.name,
					"error", err)
			}
		}
	}
	r.rec.IncPolls()
	if stats.Peers > 0 {
		logger.Debug("轮询周期完成",
			"contents", stats.Contents,
			"sources", stats.Sources,
			"peers", stats.Peers,
			"errors", stats.Errors)
	}
	return stats
}

// pollSource 查询单个（内容，源）对，panic 转为错误
func (r *Registry) pollSource(id types.ContentID, ns namedSource) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrSourcePanic, ns.name, rec)
		}
	}()

	if !ns.src.Update() {
		return 0, nil
	}
	seen := make(map[string]struct{})
	for _, p := range ns.src.GetPeers() {
		if p == nil {
			continue
		}
		key := p.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		accepted, err := r.addPeer(id, p, ns.name)
		if err != nil {
			logger.Debug("丢弃无效节点", "source", ns.name, "peer", p.String(), "error", err)
			continue
		}
		if accepted {
			n++
		}
	}
	return n, nil
}

// ============================================================================
//                              调度
// ============================================================================

// Start 启动调度 goroutine，首个周期在一个间隔之后执行
func (r *Registry) Start(_ context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.stopped {
		return ErrClosed
	}
	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	ticker := r.clk.Ticker(r.interval)

	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.PollOnce(ctx)
			}
		}
	}()
	logger.Info("节点发现调度已启动", "interval", r.interval, "factories", len(r.factories))
	return nil
}

// Stop 停止调度并等待当前周期结束
func (r *Registry) Stop(ctx context.Context) error {
	r.runMu.Lock()
	r.stopped = true
	cancel, done := r.cancel, r.done
	r.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
