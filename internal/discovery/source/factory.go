package source

import (
	"sync"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// MemoizedFactory 按内容 ID 记忆化的发现源工厂
type MemoizedFactory struct {
	name   string
	create func(id types.ContentID) pkgif.PeerSource

	mu      sync.Mutex
	sources map[types.ContentID]pkgif.PeerSource
}

var (
	_ pkgif.PeerSourceFactory = (*MemoizedFactory)(nil)
	_ pkgif.NamedSource       = (*MemoizedFactory)(nil)
)

// NewMemoizedFactory 创建工厂，create 对每个内容 ID 至多调用一次
func NewMemoizedFactory(name string, create func(id types.ContentID) pkgif.PeerSource) *MemoizedFactory {
	return &MemoizedFactory{
		name:    name,
		create:  create,
		sources: make(map[types.ContentID]pkgif.PeerSource),
	}
}

// Name 工厂名称
func (f *MemoizedFactory) Name() string {
	return f.name
}

// PeerSource 实现 pkgif.PeerSourceFactory
func (f *MemoizedFactory) PeerSource(id types.ContentID) pkgif.PeerSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if src, ok := f.sources[id]; ok {
		return src
	}
	src := f.create(id)
	f.sources[id] = src
	return src
}

// Len 已创建的源数量
func (f *MemoizedFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}
