// Package stream 将回调式的异步生产者桥接为拉取式序列
//
// 生产者反复调用 AddItem，结束时调用一次 FinishStream；
// 消费者通过 Next 或 Sequence 阻塞拉取。同一时刻只支持一个消费者。
//
// 顺序保证：FinishStream 生效前入队的元素一定会交付，之后到达的元素被丢弃。
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("util/stream")

// Adapter 回调到迭代器的桥接器
type Adapter[T any] struct {
	mu       sync.Mutex
	queue    []T
	finished bool

	// notify 容量为 1，合并多次入队唤醒
	notify chan struct{}
	// done 在 FinishStream 时关闭
	done       chan struct{}
	finishOnce sync.Once

	consumed atomic.Bool
}

// New 创建 Adapter
func New[T any]() *Adapter[T] {
	return &Adapter[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// AddItem 追加一个元素
//
// item 为 nil 时返回 types.ErrInvalidArgument。流结束后追加的元素被静默丢弃。
func (a *Adapter[T]) AddItem(item T) error {
	if isNil(item) {
		return fmt.Errorf("%w: nil stream item", types.ErrInvalidArgument)
	}

	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		logger.Debug("流已结束，丢弃元素")
		return nil
	}
	a.queue = append(a.queue, item)
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return nil
}

// FinishStream 标记流结束，可重复调用
//
// 阻塞在 Next 上的消费者会被唤醒，排空剩余元素后得到 ErrStreamFinished。
func (a *Adapter[T]) FinishStream() {
	a.finishOnce.Do(func() {
		a.mu.Lock()
		a.finished = true
		a.mu.Unlock()
		close(a.done)
	})
}

// Finished 流是否已结束
func (a *Adapter[T]) Finished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finished
}

// Len 当前排队的元素数
func (a *Adapter[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Next 取出下一个元素，必要时阻塞
//
// 返回值：
//   - ErrStreamFinished: 流已结束且队列为空
//   - ErrInterrupted: ctx 在流结束前被取消（包装 ctx.Err()）
func (a *Adapter[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		a.mu.Lock()
		if len(a.queue) > 0 {
			item := a.queue[0]
			a.queue[0] = zero
			a.queue = a.queue[1:]
			a.mu.Unlock()
			return item, nil
		}
		finished := a.finished
		a.mu.Unlock()

		if finished {
			return zero, ErrStreamFinished
		}

		// 任何唤醒都只是提示，回到循环顶部重新检查队列与结束标志
		select {
		case <-a.notify:
		case <-a.done:
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
	}
}

// Sequence 返回惰性、有限、不可重启的序列
//
// 只有非结束原因的中断会以错误形式产出一次，随后序列终止。
// 第二次遍历只会产出 ErrAlreadyConsumed。
//
// 示例：
//
//	for peer, err := range adapter.Sequence(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(peer)
//	}
func (a *Adapter[T]) Sequence(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if !a.consumed.CompareAndSwap(false, true) {
			yield(zero, ErrAlreadyConsumed)
			return
		}
		for {
			item, err := a.Next(ctx)
			if errors.Is(err, ErrStreamFinished) {
				return
			}
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// isNil 判断泛型值是否为 nil（接口、指针、map、切片、通道、函数）
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
