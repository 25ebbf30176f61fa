package handshake

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	LC       fx.Lifecycle
	Config   *config.Config        `optional:"true"`
	Torrents pkgif.TorrentRegistry `optional:"true"`
	Pool     pkgif.ConnectionPool  `optional:"true"`
	EventBus pkgif.EventBus        `optional:"true"`
	Metrics  *metrics.Recorder     `optional:"true"`
}

// ModuleOutput 模块输出服务
type ModuleOutput struct {
	fx.Out

	Payloads *PayloadFactory
	Handler  *Handler
	Consumer *Consumer
}

// Module 返回握手 Fx 模块
func Module() fx.Option {
	return fx.Module("handshake",
		fx.Provide(ProvideHandshake),
	)
}

// ProvideHandshake 组装负载工厂、Handler 与 Consumer
func ProvideHandshake(in ModuleInput) (ModuleOutput, error) {
	cfg := in.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	policy, err := cfg.Security.Policy()
	if err != nil {
		return ModuleOutput{}, err
	}

	var emitter pkgif.Emitter
	if in.EventBus != nil {
		emitter, err = in.EventBus.Emitter(new(types.EvtExtendedHandshake))
		if err != nil {
			return ModuleOutput{}, err
		}
		in.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return emitter.Close()
			},
		})
	}

	payloads := NewPayloadFactory(cfg.Extension, cfg.Identity, policy, in.Torrents)
	return ModuleOutput{
		Payloads: payloads,
		Handler:  NewHandler(payloads, in.Metrics),
		Consumer: NewConsumer(in.Pool, emitter, in.Metrics),
	}, nil
}
