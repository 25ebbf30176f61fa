// Package btpeer 提供 BitTorrent 风格的节点发现与连接协商
//
// Node 是用户入口，内部通过 Fx 组装以下组件：
//
//   - PeerRegistry：周期轮询所有活跃内容的发现源，把新节点作为事件发出
//   - DHT 发现：基于 Mainline DHT 的查询与公告
//   - MSE 加密协商与 BitTorrent 基础/扩展握手
//   - 连接池：按内容登记连接并处理重复连接
//   - NAT 端口映射（UPnP / NAT-PMP）
//
// 快速开始：
//
//	node, err := btpeer.Start(ctx,
//	    btpeer.WithListenPort(51413),
//	    btpeer.WithEncryptionPolicy(types.RequireEncrypted),
//	)
//	if err != nil {
//	    return err
//	}
//	defer node.Stop(context.Background())
//
//	node.Torrents().Register(infoHash, torrents.State{Active: true})
//	sub, _ := node.EventBus().Subscribe(new(types.EvtPeerDiscovered))
package btpeer
