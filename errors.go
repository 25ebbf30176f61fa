package btpeer

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 连接相关错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrUnknownContent 内容未登记或未激活
	ErrUnknownContent = errors.New("content not registered or inactive")

	// ErrDuplicateConnection 协商完成后连接作为重复连接被关闭
	ErrDuplicateConnection = errors.New("connection closed as duplicate")
)
