package source

import (
	"context"
	"fmt"
	"sync"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("discovery/source")

// Collector 阻塞的节点收集动作
type Collector interface {
	// CollectPeers 收集节点，每发现一个调用一次 emit，返回即表示本次收集结束
	CollectPeers(ctx context.Context, emit func(*types.Peer)) error
}

// CollectorFunc 函数形式的 Collector
type CollectorFunc func(ctx context.Context, emit func(*types.Peer)) error

// CollectPeers 实现 Collector
func (f CollectorFunc) CollectPeers(ctx context.Context, emit func(*types.Peer)) error {
	return f(ctx, emit)
}

// run 一次后台收集
type run struct {
	done chan struct{}
	err  error
}

// Scheduled 基于后台收集的发现源
type Scheduled struct {
	name      string
	collector Collector
	exec      *Executor

	// 多生产者写入、调度 goroutine 一次性取走
	qmu   sync.Mutex
	queue []*types.Peer

	// schedMu 只用 TryLock，保护 current
	schedMu sync.Mutex
	current *run
}

var (
	_ pkgif.PeerSource  = (*Scheduled)(nil)
	_ pkgif.NamedSource = (*Scheduled)(nil)
)

// NewScheduled 创建发现源
func NewScheduled(name string, collector Collector, exec *Executor) *Scheduled {
	return &Scheduled{
		name:      name,
		collector: collector,
		exec:      exec,
	}
}

// Name 实现 pkgif.NamedSource
func (s *Scheduled) Name() string {
	return s.name
}

// GetPeers 取走当前队列中的全部节点
func (s *Scheduled) GetPeers() []*types.Peer {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	peers := s.queue
	s.queue = nil
	return peers
}

// Update 报告是否有可取的节点，队列为空时尝试调度收集
func (s *Scheduled) Update() bool {
	if s.hasPeers() {
		return true
	}
	s.schedule()
	return s.hasPeers()
}

// InFlight 是否有收集正在运行
func (s *Scheduled) InFlight() bool {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.current == nil {
		return false
	}
	select {
	case <-s.current.done:
		return false
	default:
		return true
	}
}

func (s *Scheduled) hasPeers() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue) > 0
}

func (s *Scheduled) enqueue(p *types.Peer) {
	if p == nil {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, p)
	s.qmu.Unlock()
}

// schedule 尝试调度一次收集
//
// 锁被占用时直接返回，由下一次轮询重试。
// 上一次收集已结束时只记录其错误并复位，新的收集在下一次调用时提交。
func (s *Scheduled) schedule() {
	if !s.schedMu.TryLock() {
		return
	}
	defer s.schedMu.Unlock()

	if s.current != nil {
		select {
		case <-s.current.done:
			if s.current.err != nil {
				logger.Warn("节点收集失败", "source", s.name, "error", s.current.err)
			}
			s.current = nil
		default:
		}
		return
	}

	r := &run{done: make(chan struct{})}
	ok := s.exec.TryGo(func(ctx context.Context) {
		defer close(r.done)
		r.err = s.collect(ctx)
	})
	if ok {
		s.current = r
	} else {
		logger.Debug("worker 预算已满，推迟收集", "source", s.name)
	}
}

// collect 执行收集并把 panic 转换为错误
func (s *Scheduled) collect(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCollectorPanic, r)
		}
	}()
	return s.collector.CollectPeers(ctx, s.enqueue)
}
