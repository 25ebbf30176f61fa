// Package dht 基于 Mainline DHT 的节点发现
//
// # 模块概述
//
// Service 通过 pkgif.DHTLookup 后端查询内容的节点，把异步回调交付的结果
// 写入 stream.Adapter；查询结束后，如本地持有该内容的数据，
// 则将自己公告为提供者（按内容节流，不等待结果）。
//
// Source 把一次查询包装为 source.Collector，最多交付 MaxPeersPerLookup 个节点；
// Factory 按内容 ID 记忆化 Source，作为 PeerRegistry 的发现源工厂。
//
// # 后端
//
// Mainline 基于 anacrolix/dht/v2，路由表与 Kademlia 查找算法作为黑盒使用。
//
// # 生命周期
//
// 启动动作登记在 lifecycle.Binder 上：先启动后端（失败即启动失败），
// 再通过 PortMapper 映射 DHT 的 UDP 端口（失败只记录日志）。
package dht
