package connmgr

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	LC       fx.Lifecycle
	Config   *config.Config    `optional:"true"`
	EventBus pkgif.EventBus    `optional:"true"`
	Metrics  *metrics.Recorder `optional:"true"`
	Clock    clock.Clock       `optional:"true"`
}

// ModuleOutput 模块输出服务
type ModuleOutput struct {
	fx.Out

	Pool           *Pool
	ConnectionPool pkgif.ConnectionPool
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(ProvidePool),
	)
}

// ProvidePool 从配置创建连接池
func ProvidePool(in ModuleInput) (ModuleOutput, error) {
	cfg := config.DefaultConnManagerConfig()
	if in.Config != nil {
		cfg = in.Config.ConnMgr
	}
	policy, err := PolicyByName(cfg.DuplicatePolicy)
	if err != nil {
		return ModuleOutput{}, err
	}

	opts := []Option{
		WithPolicy(policy),
		WithMaxConnsPerContent(cfg.MaxConnsPerContent),
		WithClock(in.Clock),
		WithMetrics(in.Metrics),
	}

	var emitter pkgif.Emitter
	if in.EventBus != nil {
		emitter, err = in.EventBus.Emitter(new(types.EvtDuplicateConnectionClosed))
		if err != nil {
			return ModuleOutput{}, err
		}
		opts = append(opts, WithEmitter(emitter))
	}

	pool := NewPool(opts...)
	in.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			err := pool.Close()
			if emitter != nil {
				err = multierr.Append(err, emitter.Close())
			}
			return err
		},
	})
	return ModuleOutput{Pool: pool, ConnectionPool: pool}, nil
}
