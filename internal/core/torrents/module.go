package torrents

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 提供默认的内存登记表；调用方可以用 fx.Decorate 替换 pkgif.TorrentRegistry。
func Module() fx.Option {
	return fx.Module("torrents",
		fx.Provide(
			NewRegistry,
			func(r *Registry) pkgif.TorrentRegistry { return r },
		),
	)
}
