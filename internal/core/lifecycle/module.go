package lifecycle

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"
)

// Module 返回 Fx 模块
//
// 提供 Binder 作为全局单例，启动阶段绑定到 OnStart，关闭阶段绑定到 OnStop。
// 各模块在构造期间登记动作，fx 启动时统一执行。
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(NewBinder),
		fx.Invoke(registerLifecycleHooks),
	)
}

// lifecycleHooksParams 生命周期钩子参数
type lifecycleHooksParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Binder    *Binder
}

// registerLifecycleHooks 注册生命周期钩子
func registerLifecycleHooks(params lifecycleHooksParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return params.Binder.Run(ctx, PhaseStartup)
		},
		OnStop: func(ctx context.Context) error {
			err := params.Binder.Run(ctx, PhaseShutdown)
			err = multierr.Append(err, params.Binder.Wait(ctx))
			params.Binder.Close()
			return err
		},
	})
}
