package connmgr

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/connmgr")

// Connection 定义连接的最小接口
type Connection interface {
	// RemotePeer 返回远端节点记录
	RemotePeer() *types.Peer
	// Close 关闭连接
	Close() error
}

// ConnInfo 连接快照
type ConnInfo struct {
	ID        string
	ContentID types.ContentID
	Peer      *types.Peer
	AddedAt   time.Time
}

type entry struct {
	info ConnInfo
	conn Connection
}

// Pool 连接池
type Pool struct {
	policy  DuplicatePolicy
	maxConn int
	clk     clock.Clock
	emitter pkgif.Emitter
	metrics *metrics.Recorder

	mu        sync.Mutex
	byContent map[types.ContentID][]*entry
	byID      map[string]*entry
	closed    bool
}

var _ pkgif.ConnectionPool = (*Pool)(nil)

// Option 连接池选项
type Option func(*Pool)

// WithPolicy 设置重复连接策略
func WithPolicy(p DuplicatePolicy) Option {
	return func(pool *Pool) {
		if p != nil {
			pool.policy = p
		}
	}
}

// WithMaxConnsPerContent 设置每个内容的连接上限，0 表示不限
func WithMaxConnsPerContent(n int) Option {
	return func(pool *Pool) {
		pool.maxConn = n
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(pool *Pool) {
		if clk != nil {
			pool.clk = clk
		}
	}
}

// WithEmitter 设置重复连接关闭事件的发射器
func WithEmitter(em pkgif.Emitter) Option {
	return func(pool *Pool) {
		pool.emitter = em
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(pool *Pool) {
		pool.metrics = rec
	}
}

// NewPool 创建连接池
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		policy:    KeepOldest,
		clk:       clock.New(),
		byContent: make(map[types.ContentID][]*entry),
		byID:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy 返回当前策略
func (p *Pool) Policy() DuplicatePolicy {
	return p.policy
}

// Add 登记连接，返回连接 ID
func (p *Pool) Add(id types.ContentID, conn Connection) (string, error) {
	if conn == nil || conn.RemotePeer() == nil {
		return "", fmt.Errorf("%w: nil connection or remote peer", types.ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrPoolClosed
	}
	if p.maxConn > 0 && len(p.byContent[id]) >= p.maxConn {
		return "", fmt.Errorf("%w: %s has %d", ErrPoolFull, id.ShortString(), len(p.byContent[id]))
	}

	e := &entry{
		info: ConnInfo{
			ID:        uuid.NewString(),
			ContentID: id,
			Peer:      conn.RemotePeer(),
			AddedAt:   p.clk.Now(),
		},
		conn: conn,
	}
	p.byContent[id] = append(p.byContent[id], e)
	p.byID[e.info.ID] = e

	logger.Debug("连接已登记",
		"content", id.ShortString(),
		"peer", e.info.Peer.String(),
		"connID", log.TruncateID(e.info.ID, 8))
	return e.info.ID, nil
}

// Remove 移除连接（不关闭），返回是否存在
func (p *Pool) Remove(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(connID) != nil
}

func (p *Pool) removeLocked(connID string) *entry {
	e, ok := p.byID[connID]
	if !ok {
		return nil
	}
	delete(p.byID, connID)

	id := e.info.ContentID
	list := slices.DeleteFunc(p.byContent[id], func(x *entry) bool { return x == e })
	if len(list) == 0 {
		delete(p.byContent, id)
	} else {
		p.byContent[id] = list
	}
	return e
}

// Connections 返回内容的连接快照（按加入顺序）
func (p *Pool) Connections(id types.ContentID) []ConnInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.byContent[id]
	out := make([]ConnInfo, 0, len(list))
	for _, e := range list {
		out = append(out, e.info)
	}
	return out
}

// Len 返回连接总数
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// CheckDuplicateConnections 关闭到同一远端的重复连接，只保留策略选中的一条
func (p *Pool) CheckDuplicateConnections(id types.ContentID, peer *types.Peer) {
	if peer == nil {
		return
	}

	p.mu.Lock()
	var dups []*entry
	for _, e := range p.byContent[id] {
		if e.info.Peer.Equal(peer) {
			dups = append(dups, e)
		}
	}
	if len(dups) < 2 {
		p.mu.Unlock()
		return
	}

	infos := make([]ConnInfo, len(dups))
	for i, e := range dups {
		infos[i] = e.info
	}
	survivor := p.policy.Survivor(infos)

	var victims []*entry
	for i, e := range dups {
		if i == survivor {
			continue
		}
		p.removeLocked(e.info.ID)
		victims = append(victims, e)
	}
	p.mu.Unlock()

	for _, e := range victims {
		if err := e.conn.Close(); err != nil {
			logger.Debug("关闭重复连接失败", "connID", log.TruncateID(e.info.ID, 8), "error", err)
		}
		if p.emitter != nil {
			evt := types.EvtDuplicateConnectionClosed{ContentID: id, Peer: e.info.Peer, ConnID: e.info.ID}
			if err := p.emitter.Emit(evt); err != nil {
				logger.Debug("重复连接事件发射失败", "error", err)
			}
		}
	}
	p.metrics.AddDuplicatesClosed(len(victims))

	logger.Info("已关闭重复连接",
		"content", id.ShortString(),
		"peer", peer.String(),
		"closed", len(victims),
		"policy", p.policy.Name(),
		"kept", log.TruncateID(dups[survivor].info.ID, 8))
}

// Close 关闭连接池及所有连接
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := make([]*entry, 0, len(p.byID))
	for _, list := range p.byContent {
		entries = append(entries, list...)
	}
	p.byContent = make(map[types.ContentID][]*entry)
	p.byID = make(map[string]*entry)
	p.mu.Unlock()

	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, e.conn.Close())
	}
	return errs
}
