package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
	Clock  clock.Clock    `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(NewRecorderFromParams),
)

// NewRecorderFromParams 从参数创建 Recorder
//
// 配置禁用指标时返回 nil，下游组件的调用全部退化为空操作。
func NewRecorderFromParams(p Params) *Recorder {
	if p.Config != nil && !p.Config.Metrics.Enabled {
		return nil
	}
	return NewRecorder(prometheus.NewRegistry(), p.Clock)
}
