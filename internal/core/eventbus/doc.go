// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制，并以 Sink 的形式实现发现事件接收方：
// PeerRegistry 调用 Sink.FirePeerDiscovered，连接层订阅 types.EvtPeerDiscovered。
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerDiscovered))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtPeerDiscovered)
//	        dial(e.ContentID, e.Peer)
//	    }
//	}()
//
// # 并发安全
//
// 每种事件类型一个 topic。投递持 topic 读锁，取消订阅持写锁，
// 所以通道只会在不再有发送者之后关闭。订阅者缓冲区满时事件被丢弃并计数
// （Subscription.Dropped），发射方永不阻塞。
package eventbus
