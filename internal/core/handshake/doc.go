// Package handshake 实现基础握手与扩展能力协商
//
// 基础握手为 68 字节：
//
//	<pstrlen=19><"BitTorrent protocol"><reserved 8 字节><info hash 20 字节><peer id 20 字节>
//
// 保留位第 43 位（MSB 优先计数，即 reserved[5] & 0x10）表示支持扩展协议。
// 仅当本地扩展集合非空时才设置该位并在握手后发送扩展握手消息：
//
//	<uint32 长度><id=20><扩展 id=0><bencode 字典>
//
// 收到携带监听端口的扩展握手后，连接对应的 Peer 端口被更新，
// 然后由连接池检查并关闭到同一远端的重复连接。
//
// # 状态机
//
//	Init → BaseHandshakeSent ⇄ BaseHandshakeReceived
//	     → [ExtendedCapabilitiesSent] → [ExtendedCapabilitiesReceived] → Negotiated
package handshake
