package registry

import "errors"

var (
	// ErrSourcePanic 发现源在查询时发生 panic
	ErrSourcePanic = errors.New("registry: peer source panicked")

	// ErrAlreadyStarted 调度器已启动
	ErrAlreadyStarted = errors.New("registry: already started")

	// ErrClosed 注册表已停止
	ErrClosed = errors.New("registry: closed")
)
