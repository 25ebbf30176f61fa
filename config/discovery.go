package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// PollInterval PeerRegistry 轮询间隔
	PollInterval Duration `json:"poll_interval"`

	// SourceWorkers 发现源后台收集的并发上限
	SourceWorkers int `json:"source_workers"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		PollInterval:  Duration(5 * time.Second), // 轮询间隔：5 秒
		SourceWorkers: 4,                         // 后台收集并发：4
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", types.ErrInvalidArgument)
	}
	if c.SourceWorkers <= 0 {
		return fmt.Errorf("%w: source workers must be positive", types.ErrInvalidArgument)
	}
	return nil
}
