// Package natpmp 实现 NAT-PMP 端口映射
//
// natpmp 使用 NAT-PMP 协议（RFC 6886）自动配置 NAT 设备的端口映射，
// 主要用于 Apple 路由器和其他支持该协议的设备。
//
// # 使用示例
//
//	mapper, err := natpmp.Discover(ctx, 5*time.Second, 30*time.Minute)
//	if err != nil {
//	    return err
//	}
//	mapper.Start()
//	defer mapper.Stop()
//
//	ext, err := mapper.MapPort(ctx, "tcp", 6881, "", "", time.Hour)
package natpmp
