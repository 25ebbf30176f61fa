package eventbus

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus       *Bus
	EventBus  pkgif.EventBus
	EventSink pkgif.EventSink
	Sink      *Sink
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 与发现事件 Sink
func ProvideEventBus() (Result, error) {
	bus := NewBus()
	sink, err := NewSink(bus)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Bus:       bus,
		EventBus:  bus,
		EventSink: sink,
		Sink:      sink,
	}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC   fx.Lifecycle
	Bus  *Bus
	Sink *Sink
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return multierr.Append(input.Sink.Close(), input.Bus.Close())
		},
	})
}
