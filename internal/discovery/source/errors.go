package source

import "errors"

var (
	// ErrCollectorPanic Collector 发生 panic
	ErrCollectorPanic = errors.New("source: collector panicked")

	// ErrExecutorClosed Executor 已关闭
	ErrExecutorClosed = errors.New("source: executor closed")
)
