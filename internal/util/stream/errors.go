package stream

import "errors"

var (
	// ErrStreamFinished 流已结束且队列已排空
	ErrStreamFinished = errors.New("stream finished")

	// ErrInterrupted 等待被非结束原因打断（通常是 context 取消）
	ErrInterrupted = errors.New("stream wait interrupted")

	// ErrAlreadyConsumed 序列不可重复消费
	ErrAlreadyConsumed = errors.New("stream sequence already consumed")
)
