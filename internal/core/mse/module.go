package mse

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 MSE Fx 模块
func Module() fx.Option {
	return fx.Module("mse",
		fx.Provide(ProvideNegotiator),
	)
}

// ProvideNegotiator 提供加密协商器
func ProvideNegotiator(in ModuleInput) (*Negotiator, error) {
	cfg := config.DefaultSecurityConfig()
	if in.Config != nil {
		cfg = in.Config.Security
	}
	return NewNegotiatorFromConfig(cfg)
}
