package dht

import "errors"

var (
	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("dht: service closed")

	// ErrNotStarted 后端尚未启动
	ErrNotStarted = errors.New("dht: backend not started")

	// ErrNoBootstrapNodes 引导节点全部无法解析
	ErrNoBootstrapNodes = errors.New("dht: no bootstrap nodes resolved")
)
