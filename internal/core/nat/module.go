package nat

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
)

// Params NAT 模块输入参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Result NAT 模块输出结果
type Result struct {
	fx.Out

	Service    *Service
	PortMapper pkgif.PortMapper
}

// Module 返回 NAT Fx 模块
func Module() fx.Option {
	return fx.Module("nat",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 从配置创建端口映射服务
func ProvideService(p Params) Result {
	cfg := config.DefaultNATConfig()
	if p.Config != nil {
		cfg = p.Config.NAT
	}
	svc := NewService(cfg)
	return Result{Service: svc, PortMapper: svc}
}

func registerLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return svc.Close()
		},
	})
}
