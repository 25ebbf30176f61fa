package source

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers 默认 worker 预算
const DefaultWorkers = 4

// Executor 有界的后台任务执行器
type Executor struct {
	sem     *semaphore.Weighted
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
	active atomic.Int32
}

// NewExecutor 创建执行器，workers 为并发上限
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// TryGo 在有空闲 worker 时运行 fn，不阻塞
//
// 返回 false 表示预算已满或执行器已关闭，fn 未被运行。
func (e *Executor) TryGo(fn func(ctx context.Context)) bool {
	if e.closed.Load() {
		return false
	}
	if !e.sem.TryAcquire(1) {
		return false
	}
	e.wg.Add(1)
	e.active.Add(1)
	go func() {
		defer func() {
			e.active.Add(-1)
			e.sem.Release(1)
			e.wg.Done()
		}()
		fn(e.ctx)
	}()
	return true
}

// Active 返回正在运行的任务数
func (e *Executor) Active() int {
	return int(e.active.Load())
}

// Workers 返回 worker 预算
func (e *Executor) Workers() int {
	return e.workers
}

// Close 取消所有任务的 ctx 并等待其返回
//
// 不响应 ctx 的任务会让 Close 一直阻塞，调用方可通过 ctx 限定等待时间。
func (e *Executor) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
