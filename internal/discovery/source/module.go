package source

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
)

// Params 模块输入
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 Fx 模块，提供共享的 Executor
func Module() fx.Option {
	return fx.Module("discovery_source",
		fx.Provide(ProvideExecutor),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideExecutor 按配置创建 Executor
func ProvideExecutor(p Params) *Executor {
	workers := DefaultWorkers
	if p.Config != nil {
		workers = p.Config.Discovery.SourceWorkers
	}
	return NewExecutor(workers)
}

func registerLifecycle(lc fx.Lifecycle, exec *Executor) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return exec.Close(ctx)
		},
	})
}
