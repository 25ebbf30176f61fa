package connmgr

import "errors"

// 连接池错误定义
var (
	// ErrPoolClosed 连接池已关闭
	ErrPoolClosed = errors.New("connmgr: pool closed")

	// ErrPoolFull 内容的连接数已达上限
	ErrPoolFull = errors.New("connmgr: too many connections for content")
)
