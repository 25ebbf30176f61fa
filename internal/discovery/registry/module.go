package registry

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/lifecycle"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
)

// Module 返回 PeerRegistry 的 Fx 模块
func Module() fx.Option {
	return fx.Module("discovery_registry",
		fx.Provide(ProvideLocalPeer, ProvideRegistry),
		fx.Invoke(bindLifecycle),
	)
}

// Params Registry 依赖参数
type Params struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Local     LocalPeer
	Torrents  pkgif.TorrentRegistry
	Sink      pkgif.EventSink
	Factories []pkgif.PeerSourceFactory `group:"peer_source_factories"`
	Metrics   *metrics.Recorder         `optional:"true"`
	Clock     clock.Clock               `optional:"true"`
}

// LocalPeerParams 本地节点依赖参数
type LocalPeerParams struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ProvideLocalPeer 由配置解析本地节点
func ProvideLocalPeer(p LocalPeerParams) (LocalPeer, error) {
	identity := config.DefaultIdentityConfig()
	if p.Config != nil {
		identity = p.Config.Identity
	}
	return LocalPeerFromConfig(identity)
}

// ProvideRegistry 创建 Registry
func ProvideRegistry(p Params) (*Registry, error) {
	interval := config.DefaultDiscoveryConfig().PollInterval.Std()
	if p.Config != nil {
		interval = p.Config.Discovery.PollInterval.Std()
	}
	return NewRegistry(p.Torrents, p.Sink, p.Local,
		WithFactories(p.Factories...),
		WithPollInterval(interval),
		WithMetrics(p.Metrics),
		WithClock(p.Clock),
	)
}

// bindLifecycle 调度器在启动阶段启动，关闭阶段同步停止
func bindLifecycle(binder *lifecycle.Binder, r *Registry) error {
	if err := binder.OnStartup("启动节点发现调度", r.Start); err != nil {
		return err
	}
	return binder.OnShutdown("停止节点发现调度", func(ctx context.Context) error {
		return r.Stop(ctx)
	}, lifecycle.WithAsync(false))
}
