// Package nat 实现端口映射能力（PortMapper）
//
// # 模块概述
//
// nat 为 DHT 和监听端口提供尽力而为的 NAT 端口映射：
//   - UPnP: 通过 IGD 服务映射端口 (upnp 子包)
//   - NAT-PMP: 通过默认网关映射端口 (natpmp 子包)
//
// 映射后端在第一次 MapPort 时惰性发现，按 UPnP → NAT-PMP 的顺序尝试，
// 第一个成功的后端生效。映射由后端的续期循环维持，Close 时全部撤销。
//
// # 快速开始
//
//	svc := nat.NewService(config.DefaultNATConfig())
//	defer svc.Close()
//
//	err := svc.MapPort(ctx, 6881, "", interfaces.ProtocolUDP, "btpeer dht")
//	if errors.Is(err, nat.ErrMappingFailed) {
//	    // 映射失败不影响运行
//	}
//
// # Fx 集成
//
//	fx.New(
//	    nat.Module(),
//	    fx.Invoke(func(pm interfaces.PortMapper) { ... }),
//	)
package nat
