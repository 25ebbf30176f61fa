// Package torrents 提供内存中的内容状态登记表
//
// Registry 实现 pkgif.TorrentRegistry，供发现与握手模块查询内容的
// 活跃、私有、做种状态与已完成分片数。
package torrents

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/torrents")

var (
	// ErrAlreadyRegistered 内容已登记
	ErrAlreadyRegistered = errors.New("torrents: content already registered")

	// ErrNotFound 内容未登记
	ErrNotFound = errors.New("torrents: content not found")
)

// State 内容状态，实现 pkgif.Descriptor
type State struct {
	Active  bool
	Private bool
	Seed    bool
	Pieces  int
}

func (s State) IsActive() bool      { return s.Active }
func (s State) IsPrivate() bool     { return s.Private }
func (s State) IsSeed() bool        { return s.Seed }
func (s State) CompletePieces() int { return s.Pieces }

var _ pkgif.Descriptor = State{}

// Registry 内存登记表
type Registry struct {
	mu    sync.RWMutex
	items map[types.ContentID]State
	order []types.ContentID
}

var _ pkgif.TorrentRegistry = (*Registry)(nil)

// NewRegistry 创建空登记表
func NewRegistry() *Registry {
	return &Registry{items: make(map[types.ContentID]State)}
}

// Register 登记内容
func (r *Registry) Register(id types.ContentID, st State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id.ShortString())
	}
	r.items[id] = st
	r.order = append(r.order, id)
	logger.Debug("内容已登记", "content", id.ShortString(), "private", st.Private, "seed", st.Seed)
	return nil
}

// Update 修改已登记内容的状态
func (r *Registry) Update(id types.ContentID, fn func(*State)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id.ShortString())
	}
	fn(&st)
	r.items[id] = st
	return nil
}

// Unregister 移除内容，返回是否存在
func (r *Registry) Unregister(id types.ContentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	r.order = slices.DeleteFunc(r.order, func(x types.ContentID) bool { return x == id })
	return true
}

// Descriptor 实现 pkgif.TorrentRegistry
func (r *Registry) Descriptor(id types.ContentID) (pkgif.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.items[id]
	if !ok {
		return nil, false
	}
	return st, true
}

// IsSupportedAndActive 实现 pkgif.TorrentRegistry
func (r *Registry) IsSupportedAndActive(id types.ContentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.items[id]
	return ok && st.Active
}

// ContentIDs 按登记顺序返回内容 ID
func (r *Registry) ContentIDs() []types.ContentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
