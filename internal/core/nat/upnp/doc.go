// Package upnp 实现 UPnP 端口映射
//
// upnp 使用 UPnP IGD 协议自动配置路由器的端口映射，
// 支持大多数家用路由器。
//
// # 功能
//
//   - 自动发现 IGD 设备（支持 IGDv1 和 IGDv2）
//   - 创建端口映射
//   - 映射续期（在租期 2/3 时自动续期）
//   - 删除映射
//   - 获取外部 IP
//
// # 使用示例
//
//	mapper, err := upnp.Discover(ctx, 2*time.Second)
//	if err != nil {
//	    return err
//	}
//	mapper.Start()
//	defer mapper.Stop()
//
//	ext, err := mapper.MapPort(ctx, "udp", 6881, "192.168.1.10", "btpeer dht", time.Hour)
package upnp
