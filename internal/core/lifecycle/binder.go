// Package lifecycle 提供启动/关闭两阶段的有序钩子注册表
//
// 组件在构造期间通过 OnStartup / OnShutdown 登记具名动作，
// 驱动方（fx 生命周期）在阶段切换时按登记顺序执行：
//   - 同步动作依次执行，阶段结束前全部完成
//   - 异步动作在后台执行，由 Wait 统一等待
//
// 登记表只追加不删除，与进程同寿命。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/lifecycle")

// ErrNilAction 登记的动作为空
var ErrNilAction = errors.New("lifecycle action is nil")

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 生命周期阶段
type Phase int

const (
	// PhaseStartup 启动阶段
	PhaseStartup Phase = iota
	// PhaseShutdown 关闭阶段
	PhaseShutdown
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseStartup:
		return "startup"
	case PhaseShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ============================================================================
//                              Binding
// ============================================================================

// Action 生命周期动作
type Action func(ctx context.Context) error

// Binding 一条已登记的生命周期动作，构造后不可变
type Binding struct {
	// ID 唯一标识
	ID string

	// Description 可读描述，用于日志
	Description string

	// Action 要执行的动作
	Action Action

	// Async 是否异步执行
	Async bool
}

// BindingOption Binding 选项
type BindingOption func(*Binding)

// WithAsync 覆盖默认的同步/异步属性
func WithAsync(async bool) BindingOption {
	return func(b *Binding) {
		b.Async = async
	}
}

// ============================================================================
//                              Binder
// ============================================================================

// Binder 生命周期钩子注册表
type Binder struct {
	mu       sync.RWMutex
	bindings map[Phase][]Binding

	// 异步动作追踪
	wg       sync.WaitGroup
	asyncMu  sync.Mutex
	asyncErr error

	// 异步动作使用的上下文，Close 时取消
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBinder 创建 Binder
func NewBinder() *Binder {
	ctx, cancel := context.WithCancel(context.Background())
	return &Binder{
		bindings: make(map[Phase][]Binding),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnStartup 登记启动动作（默认同步）
func (b *Binder) OnStartup(description string, action Action, opts ...BindingOption) error {
	return b.bind(PhaseStartup, description, action, false, opts)
}

// OnShutdown 登记关闭动作（默认异步，避免慢速资源释放阻塞关闭）
func (b *Binder) OnShutdown(description string, action Action, opts ...BindingOption) error {
	return b.bind(PhaseShutdown, description, action, true, opts)
}

func (b *Binder) bind(phase Phase, description string, action Action, async bool, opts []BindingOption) error {
	if action == nil {
		return fmt.Errorf("%w: %w (%s)", types.ErrInvalidArgument, ErrNilAction, description)
	}

	binding := Binding{
		ID:          uuid.NewString(),
		Description: description,
		Action:      action,
		Async:       async,
	}
	for _, opt := range opts {
		opt(&binding)
	}

	b.mu.Lock()
	b.bindings[phase] = append(b.bindings[phase], binding)
	b.mu.Unlock()

	logger.Debug("登记生命周期动作",
		"phase", phase.String(),
		"description", description,
		"async", binding.Async)
	return nil
}

// VisitBindings 按登记顺序遍历阶段的所有动作
func (b *Binder) VisitBindings(phase Phase, fn func(Binding)) {
	for _, binding := range b.Bindings(phase) {
		fn(binding)
	}
}

// Bindings 返回阶段动作的快照
func (b *Binder) Bindings(phase Phase) []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Binding, len(b.bindings[phase]))
	copy(out, b.bindings[phase])
	return out
}

// ============================================================================
//                              执行
// ============================================================================

// Run 执行一个阶段
//
// 同步动作按顺序在调用方 goroutine 上执行：
//   - 启动阶段遇到第一个失败立即返回
//   - 关闭阶段执行全部动作并聚合错误
//
// 异步动作在后台执行，错误在 Wait 中返回。
func (b *Binder) Run(ctx context.Context, phase Phase) error {
	var errs error
	for _, binding := range b.Bindings(phase) {
		if binding.Async {
			b.runAsync(phase, binding)
			continue
		}

		if err := invoke(ctx, binding); err != nil {
			logger.Warn("生命周期动作失败",
				"phase", phase.String(),
				"description", binding.Description,
				"error", err)
			err = fmt.Errorf("%s: %w", binding.Description, err)
			if phase == PhaseStartup {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}

	logger.Debug("生命周期阶段完成", "phase", phase.String())
	return errs
}

func (b *Binder) runAsync(phase Phase, binding Binding) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := invoke(b.ctx, binding); err != nil {
			logger.Warn("异步生命周期动作失败",
				"phase", phase.String(),
				"description", binding.Description,
				"error", err)
			b.asyncMu.Lock()
			b.asyncErr = multierr.Append(b.asyncErr, fmt.Errorf("%s: %w", binding.Description, err))
			b.asyncMu.Unlock()
		}
	}()
}

// invoke 执行单个动作，panic 转为错误
func invoke(ctx context.Context, binding Binding) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return binding.Action(ctx)
}

// Wait 等待所有已启动的异步动作结束
//
// 返回异步动作累积的错误；ctx 先结束时返回 ctx.Err()。
func (b *Binder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.asyncMu.Lock()
	defer b.asyncMu.Unlock()
	return b.asyncErr
}

// Close 取消仍在运行的异步动作的上下文
func (b *Binder) Close() {
	b.cancel()
}
