package config

import (
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// DefaultBootstrapNodes 公共 Mainline DHT 引导节点
var DefaultBootstrapNodes = []string{
	"router.bittorrent.com:6881",
	"router.utorrent.com:6881",
	"dht.transmissionbt.com:6881",
	"dht.libtorrent.org:25401",
}

// DHTConfig Mainline DHT 配置
type DHTConfig struct {
	// Enabled 是否启用 DHT 发现
	Enabled bool `json:"enabled"`

	// Port DHT UDP 端口，0 表示随机
	Port int `json:"port"`

	// BootstrapNodes 引导节点（host:port）
	BootstrapNodes []string `json:"bootstrap_nodes,omitempty"`

	// BootstrapTimeout 启动时引导的超时
	BootstrapTimeout Duration `json:"bootstrap_timeout"`

	// MaxPeersPerLookup 单次查询最多交付的节点数，超出部分被截断
	MaxPeersPerLookup int `json:"max_peers_per_lookup"`

	// LookupTimeout 单次查询超时
	LookupTimeout Duration `json:"lookup_timeout"`

	// LookupRate 每秒允许发起的查询数
	LookupRate float64 `json:"lookup_rate"`

	// LookupBurst 查询突发上限
	LookupBurst int `json:"lookup_burst"`

	// AnnounceInterval 同一内容两次公告的最小间隔
	AnnounceInterval Duration `json:"announce_interval"`

	// AnnounceCacheSize 公告节流缓存容量（内容数）
	AnnounceCacheSize int `json:"announce_cache_size"`

	// ImpliedPort 公告时让对端使用 UDP 源端口
	ImpliedPort bool `json:"implied_port"`
}

// DefaultDHTConfig 返回默认 DHT 配置
func DefaultDHTConfig() DHTConfig {
	return DHTConfig{
		Enabled:           true,
		Port:              6881,
		BootstrapNodes:    append([]string(nil), DefaultBootstrapNodes...),
		BootstrapTimeout:  Duration(10 * time.Second),
		MaxPeersPerLookup: 50,
		LookupTimeout:     Duration(30 * time.Second),
		LookupRate:        5,
		LookupBurst:       10,
		AnnounceInterval:  Duration(15 * time.Minute),
		AnnounceCacheSize: 1024,
	}
}

// Validate 验证 DHT 配置
func (c DHTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 0 || c.Port > types.MaxPort {
		return fmt.Errorf("%w: dht port %d out of range", types.ErrInvalidArgument, c.Port)
	}
	for _, node := range c.BootstrapNodes {
		if _, _, err := net.SplitHostPort(node); err != nil {
			return fmt.Errorf("%w: bootstrap node %q: %v", types.ErrInvalidArgument, node, err)
		}
	}
	if c.MaxPeersPerLookup <= 0 {
		return fmt.Errorf("%w: max peers per lookup must be positive", types.ErrInvalidArgument)
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("%w: lookup timeout must be positive", types.ErrInvalidArgument)
	}
	if c.LookupRate <= 0 || c.LookupBurst <= 0 {
		return fmt.Errorf("%w: lookup rate and burst must be positive", types.ErrInvalidArgument)
	}
	if c.AnnounceCacheSize <= 0 {
		return fmt.Errorf("%w: announce cache size must be positive", types.ErrInvalidArgument)
	}
	if c.AnnounceInterval < 0 {
		return fmt.Errorf("%w: announce interval must not be negative", types.ErrInvalidArgument)
	}
	return nil
}
