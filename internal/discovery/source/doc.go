// Package source 提供发现源的通用实现
//
// Scheduled 把阻塞的收集动作（Collector）包装成非阻塞的
// pkgif.PeerSource：Update 在队列为空时调度一次后台收集，
// 同一实例任何时刻至多有一个收集在运行。
//
// 收集没有超时：挂起的 Collector 会一直占用一个 worker，
// 对应的源也不会再开始新的收集。
//
// MemoizedFactory 按内容 ID 记忆化发现源的创建，
// Executor 为后台收集提供有界的 worker 预算。
package source
