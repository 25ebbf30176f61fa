package btpeer

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-btpeer/config"

	// Core Layer
	"github.com/dep2p/go-btpeer/internal/core/connmgr"
	"github.com/dep2p/go-btpeer/internal/core/eventbus"
	"github.com/dep2p/go-btpeer/internal/core/handshake"
	"github.com/dep2p/go-btpeer/internal/core/lifecycle"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	"github.com/dep2p/go-btpeer/internal/core/mse"
	"github.com/dep2p/go-btpeer/internal/core/nat"
	"github.com/dep2p/go-btpeer/internal/core/torrents"

	// Discovery Layer
	"github.com/dep2p/go-btpeer/internal/discovery/dht"
	"github.com/dep2p/go-btpeer/internal/discovery/registry"
	"github.com/dep2p/go-btpeer/internal/discovery/source"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
)

var fxLogger = log.Logger("btpeer/fx")

// factoryGroup 发现源工厂的 Fx 分组
const factoryGroup = `group:"peer_source_factories"`

// buildFxApp 构建 Fx 应用
//
// 组装所有内部模块，采用条件加载策略：
//   - 核心模块：必须加载（Lifecycle, EventBus, Metrics, Torrents, MSE, Handshake, ConnMgr）
//   - 条件模块：根据配置加载（NAT, DHT）
//   - 扩展模块：用户自定义 Fx 选项
func buildFxApp(cfg *nodeConfig, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块（必须加载）
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg.config),

		// 生命周期登记表（全局单例）
		lifecycle.Module(),

		eventbus.Module(),
		metrics.Module,
		torrents.Module(),
		mse.Module(),
		connmgr.Module(),
		handshake.Module(),
		source.Module(),
		registry.Module(),
	}

	if cfg.torrents != nil {
		reg := cfg.torrents
		modules = append(modules, fx.Decorate(func(pkgif.TorrentRegistry) pkgif.TorrentRegistry {
			return reg
		}))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. NAT 端口映射（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.config.NAT.Enabled() {
		modules = append(modules, nat.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 发现源（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.config.DHT.Enabled {
		modules = append(modules, dht.Module())
	}
	for _, f := range cfg.factories {
		modules = append(modules, fx.Provide(fx.Annotate(
			func() pkgif.PeerSourceFactory { return f },
			fx.ResultTags(factoryGroup),
		)))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户自定义选项
	// ════════════════════════════════════════════════════════════════════════
	if len(cfg.userFxOptions) > 0 {
		modules = append(modules, cfg.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// ════════════════════════════════════════════════════════════════════════
	// 7. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(fxEventLogger(cfg.fxLogging)))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// fxEventLogger 默认禁用 Fx 日志输出，避免干扰用户日志
func fxEventLogger(enabled bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if !enabled {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			fxLogger.Warn("创建 Fx 日志失败，改用空日志", "error", err)
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: l}
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Config     *config.Config
	EventBus   pkgif.EventBus
	Torrents   pkgif.TorrentRegistry
	Registry   *registry.Registry
	Local      registry.LocalPeer
	Pool       *connmgr.Pool
	Negotiator *mse.Negotiator
	Handler    *handshake.Handler
	Consumer   *handshake.Consumer
	Metrics    *metrics.Recorder `optional:"true"`
	DHT        *dht.Service      `optional:"true"`
	NAT        *nat.Service      `optional:"true"`
}

func injectNodeComponents(node *Node) func(nodeInjectParams) {
	return func(p nodeInjectParams) {
		node.cfg = p.Config
		node.bus = p.EventBus
		node.torrents = p.Torrents
		node.registry = p.Registry
		node.local = p.Local
		node.pool = p.Pool
		node.negotiator = p.Negotiator
		node.handler = p.Handler
		node.consumer = p.Consumer
		node.metrics = p.Metrics
		node.dht = p.DHT
		node.nat = p.NAT
	}
}
