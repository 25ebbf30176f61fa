package dht

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	"github.com/dep2p/go-btpeer/internal/util/stream"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("discovery/dht")

// announceTimeout 单次公告的上限
const announceTimeout = time.Minute

// ============================================================================
//                              Service
// ============================================================================

// Service DHT 发现服务
type Service struct {
	lookup   pkgif.DHTLookup
	torrents pkgif.TorrentRegistry
	rec      *metrics.Recorder
	clk      clock.Clock

	limiter       *rate.Limiter
	lookupTimeout time.Duration
	announcePort  int

	// 每个内容最近一次公告的时间
	announceInterval time.Duration
	announced        *lru.Cache[types.ContentID, time.Time]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option Service 选项
type Option func(*Service)

// WithTorrents 设置内容状态提供方，未设置时不公告
func WithTorrents(torrents pkgif.TorrentRegistry) Option {
	return func(s *Service) {
		s.torrents = torrents
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clk = clk
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Service) {
		s.rec = rec
	}
}

// WithAnnouncePort 设置公告的 TCP 端口
func WithAnnouncePort(port int) Option {
	return func(s *Service) {
		s.announcePort = port
	}
}

// NewService 创建 DHT 发现服务
func NewService(lookup pkgif.DHTLookup, cfg config.DHTConfig, opts ...Option) (*Service, error) {
	if lookup == nil {
		return nil, fmt.Errorf("%w: nil dht lookup", types.ErrInvalidArgument)
	}
	size := cfg.AnnounceCacheSize
	if size <= 0 {
		size = config.DefaultDHTConfig().AnnounceCacheSize
	}
	cache, err := lru.New[types.ContentID, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("create announce cache: %w", err)
	}

	limit, burst := rate.Limit(cfg.LookupRate), cfg.LookupBurst
	if limit <= 0 || burst <= 0 {
		limit, burst = rate.Inf, 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		lookup:           lookup,
		clk:              clock.New(),
		limiter:          rate.NewLimiter(limit, burst),
		lookupTimeout:    cfg.LookupTimeout.Std(),
		announceInterval: cfg.AnnounceInterval.Std(),
		announced:        cache,
		ctx:              ctx,
		cancel:           cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetPeers 发起一次查询，结果通过返回的流交付
//
// 查询在后台进行，流在查询结束时关闭；ctx 取消会中止查询。
// 发起查询前按配置的速率限流，限流等待被 ctx 取消时返回其错误。
func (s *Service) GetPeers(ctx context.Context, id types.ContentID) (*stream.Adapter[*types.Peer], error) {
	if s.ctx.Err() != nil {
		return nil, ErrServiceClosed
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dht lookup rate limit: %w", err)
	}

	lctx, cancel := s.lookupContext(ctx)
	out := stream.New[*types.Peer]()

	onPeer := func(p *types.Peer) {
		if err := out.AddItem(p); err != nil {
			logger.Debug("丢弃无效节点", "content", id.String(), "error", err)
		}
	}
	onDone := func(err error) {
		cancel()
		s.rec.ObserveDHTLookup(err)
		if err != nil {
			logger.Debug("DHT 查询结束", "content", id.String(), "error", err)
		}
		// 公告决策在关闭流之前完成，消费者读完流即可观察到结果
		s.maybeAnnounce(id)
		out.FinishStream()
	}

	if err := s.lookup.GetPeers(lctx, id, onPeer, onDone); err != nil {
		cancel()
		s.rec.ObserveDHTLookup(err)
		return nil, fmt.Errorf("dht lookup %s: %w", id, err)
	}
	return out, nil
}

// lookupContext 查询上下文：调用方 ctx 或服务关闭任一结束即结束
func (s *Service) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var lctx context.Context
	var cancel context.CancelFunc
	if s.lookupTimeout > 0 {
		lctx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
	} else {
		lctx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(s.ctx, cancel)
	return lctx, func() {
		stop()
		cancel()
	}
}

// shouldAnnounce 本地持有内容数据时才公告：纯做种或至少完成一个分片
func (s *Service) shouldAnnounce(id types.ContentID) bool {
	if s.torrents == nil {
		return false
	}
	d, ok := s.torrents.Descriptor(id)
	if !ok || !d.IsActive() || d.IsPrivate() {
		return false
	}
	return d.IsSeed() || d.CompletePieces() > 0
}

// maybeAnnounce 按内容节流地在后台公告
func (s *Service) maybeAnnounce(id types.ContentID) {
	if s.ctx.Err() != nil || !s.shouldAnnounce(id) {
		return
	}
	now := s.clk.Now()
	if last, ok := s.announced.Get(id); ok && now.Sub(last) < s.announceInterval {
		return
	}
	s.announced.Add(id, now)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, announceTimeout)
		defer cancel()

		err := s.lookup.Announce(ctx, id, s.announcePort)
		s.rec.ObserveDHTAnnounce(err)
		if err != nil {
			logger.Warn("DHT 公告失败", "content", id.String(), "error", err)
			return
		}
		logger.Debug("DHT 公告完成", "content", id.String(), "port", s.announcePort)
	}()
}

// LastAnnounce 返回内容最近一次公告的时间
func (s *Service) LastAnnounce(id types.ContentID) (time.Time, bool) {
	return s.announced.Peek(id)
}

// Close 中止进行中的查询并等待公告结束
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}
