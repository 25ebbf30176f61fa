// Package interfaces 定义 btpeer 的公共接口
//
// 接口按职责分文件组织：
//   - discovery.go      - PeerSource / PeerSourceFactory / EventSink 发现契约
//   - torrents.go       - TorrentRegistry 内容状态（外部协作者）
//   - dht.go            - DHT 查询后端（黑盒）
//   - nat.go            - PortMapper 端口映射
//   - connmgr.go        - ConnectionPool 重复连接处理
//   - eventbus.go       - 类型化事件总线
//
// 实现位于 internal/ 下对应的包中，外部调用方可以替换任一协作者。
package interfaces
