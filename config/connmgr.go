package config

import (
	"fmt"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// 重复连接处理策略名称
const (
	DuplicateKeepOldest = "keep-oldest"
	DuplicateKeepNewest = "keep-newest"
)

// ConnManagerConfig 连接管理配置
type ConnManagerConfig struct {
	// DuplicatePolicy 同一远端存在多条连接时保留哪一条
	DuplicatePolicy string `json:"duplicate_policy"`

	// MaxConnsPerContent 每个内容的连接上限，0 表示不限
	MaxConnsPerContent int `json:"max_conns_per_content"`
}

// DefaultConnManagerConfig 返回默认连接管理配置
func DefaultConnManagerConfig() ConnManagerConfig {
	return ConnManagerConfig{
		DuplicatePolicy:    DuplicateKeepOldest,
		MaxConnsPerContent: 80,
	}
}

// Validate 验证连接管理配置
func (c ConnManagerConfig) Validate() error {
	switch c.DuplicatePolicy {
	case DuplicateKeepOldest, DuplicateKeepNewest:
	default:
		return fmt.Errorf("%w: unknown duplicate policy %q", types.ErrInvalidArgument, c.DuplicatePolicy)
	}
	if c.MaxConnsPerContent < 0 {
		return fmt.Errorf("%w: max conns per content must not be negative", types.ErrInvalidArgument)
	}
	return nil
}
