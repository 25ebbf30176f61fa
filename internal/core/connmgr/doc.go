// Package connmgr 实现连接池与重复连接处理
//
// Pool 按内容 ID 跟踪已建立的连接。扩展握手得知远端监听端口后，
// 同一远端可能对应多条连接（一条主动、一条被动），
// CheckDuplicateConnections 按 DuplicatePolicy 只保留其中一条。
//
// 内置策略：
//   - KeepOldest: 保留最早加入的连接（默认）
//   - KeepNewest: 保留最新加入的连接
package connmgr
