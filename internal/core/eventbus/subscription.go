package eventbus

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscription 单个订阅
type Subscription struct {
	bus     *Bus
	topic   *topic
	out     chan interface{}
	dropped atomic.Int64
	once    sync.Once
}

// Out 返回事件通道，订阅关闭后通道关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Dropped 返回因缓冲区满而丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.bus.detach(s)
		close(s.out)
	})
	return nil
}

// Emitter 单一事件类型的发射器
type Emitter struct {
	bus    *Bus
	topic  *topic
	closed atomic.Bool
}

// Emit 发射事件，事件的动态类型必须与发射器的类型一致
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if got := reflect.TypeOf(event); got != e.topic.typ {
		return fmt.Errorf("%w: emit %v on %v emitter", ErrInvalidEventType, got, e.topic.typ)
	}
	e.topic.publish(event)
	return nil
}

// Close 关闭发射器，可重复调用
func (e *Emitter) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.bus.releaseEmitter(e.topic)
	}
	return nil
}
