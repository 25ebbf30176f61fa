package handshake

import (
	"maps"
	"sync"

	"github.com/dep2p/go-btpeer/config"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// ExtensionPex 节点交换扩展名，私有内容不宣告
const ExtensionPex = "ut_pex"

// PayloadFactory 构建并缓存本地扩展握手负载
//
// 负载按内容 ID 缓存，返回值为共享只读实例。
type PayloadFactory struct {
	base     *ExtendedHandshake
	torrents pkgif.TorrentRegistry

	mu    sync.Mutex
	cache map[types.ContentID]*ExtendedHandshake
}

// NewPayloadFactory 创建负载工厂
//
// torrents 可为 nil，此时不区分私有内容。
func NewPayloadFactory(ext config.ExtensionConfig, identity config.IdentityConfig, policy types.EncryptionPolicy, torrents pkgif.TorrentRegistry) *PayloadFactory {
	base := &ExtendedHandshake{
		Extensions:   maps.Clone(ext.Extensions),
		Version:      identity.ClientVersion,
		RequestQueue: ext.RequestQueue,
		Encryption:   policy == types.PreferEncrypted || policy == types.RequireEncrypted,
	}
	if base.Extensions == nil {
		base.Extensions = map[string]int{}
	}
	if ext.AdvertisePort && identity.ListenPort > 0 {
		base.Port = identity.ListenPort
	}
	return &PayloadFactory{
		base:     base,
		torrents: torrents,
		cache:    make(map[types.ContentID]*ExtendedHandshake),
	}
}

// Payload 返回内容 ID 对应的本地负载
func (f *PayloadFactory) Payload(id types.ContentID) *ExtendedHandshake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[id]; ok {
		return p
	}

	p := f.base.Clone()
	if f.torrents != nil {
		if d, ok := f.torrents.Descriptor(id); ok && d.IsPrivate() {
			delete(p.Extensions, ExtensionPex)
		}
	}
	f.cache[id] = p
	return p
}
