package dht

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/lifecycle"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	"github.com/dep2p/go-btpeer/internal/discovery/source"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
)

// Module 返回 DHT 发现的 Fx 模块
func Module() fx.Option {
	return fx.Module("discovery_dht",
		fx.Provide(ProvideDHT),
		fx.Invoke(bindLifecycle),
	)
}

// Params DHT 依赖参数
type Params struct {
	fx.In

	Config   *config.Config `optional:"true"`
	Executor *source.Executor
	Lookup   pkgif.DHTLookup       `optional:"true"` // 未提供时使用 Mainline
	Torrents pkgif.TorrentRegistry `optional:"true"`
	Metrics  *metrics.Recorder     `optional:"true"`
	Clock    clock.Clock           `optional:"true"`
}

// Result DHT 导出结果
type Result struct {
	fx.Out

	Service *Service
	Factory *Factory
	Sources pkgif.PeerSourceFactory `group:"peer_source_factories"`
	Backend *backend
}

// backend 包装实际使用的后端，供生命周期绑定取用
type backend struct {
	lookup pkgif.DHTLookup
}

// ProvideDHT 创建服务与工厂
func ProvideDHT(p Params) (Result, error) {
	cfg := config.DefaultDHTConfig()
	announcePort := config.DefaultIdentityConfig().ListenPort
	if p.Config != nil {
		cfg = p.Config.DHT
		announcePort = p.Config.Identity.ListenPort
	}

	lookup := p.Lookup
	if lookup == nil {
		lookup = NewMainline(cfg)
	}
	svc, err := NewService(lookup, cfg,
		WithTorrents(p.Torrents),
		WithMetrics(p.Metrics),
		WithClock(p.Clock),
		WithAnnouncePort(announcePort),
	)
	if err != nil {
		return Result{}, err
	}
	f := NewFactory(svc, p.Executor, cfg.MaxPeersPerLookup)
	return Result{Service: svc, Factory: f, Sources: f, Backend: &backend{lookup: lookup}}, nil
}

type lifecycleParams struct {
	fx.In

	Binder     *lifecycle.Binder
	Service    *Service
	Backend    *backend
	PortMapper pkgif.PortMapper `optional:"true"`
}

// bindLifecycle 登记启动与关闭动作
func bindLifecycle(p lifecycleParams) error {
	lookup := p.Backend.lookup
	err := p.Binder.OnStartup("启动 DHT", func(ctx context.Context) error {
		if err := lookup.Start(ctx); err != nil {
			return fmt.Errorf("start dht: %w", err)
		}
		if p.PortMapper == nil {
			return nil
		}
		port := lookup.Port()
		if err := p.PortMapper.MapPort(ctx, port, "", pkgif.ProtocolUDP, "btpeer dht"); err != nil {
			logger.Warn("DHT 端口映射失败", "port", port, "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return p.Binder.OnShutdown("关闭 DHT", func(context.Context) error {
		// 先中止查询再关闭后端
		return multierr.Append(p.Service.Close(), lookup.Close())
	}, lifecycle.WithAsync(false))
}
