package config

import (
	"fmt"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// ExtensionConfig 扩展握手配置
type ExtensionConfig struct {
	// Extensions 本地支持的扩展：名称 → 本地消息 ID
	// 为空时既不设置保留位也不发送扩展握手
	Extensions map[string]int `json:"extensions"`

	// RequestQueue 宣告的请求队列长度（reqq）
	RequestQueue int `json:"request_queue"`

	// AdvertisePort 是否在扩展握手中宣告监听端口
	AdvertisePort bool `json:"advertise_port"`
}

// DefaultExtensionConfig 返回默认扩展配置
func DefaultExtensionConfig() ExtensionConfig {
	return ExtensionConfig{
		Extensions: map[string]int{
			"ut_pex":      1,
			"ut_metadata": 2,
		},
		RequestQueue:  250,
		AdvertisePort: true,
	}
}

// Validate 验证扩展配置
func (c ExtensionConfig) Validate() error {
	seen := make(map[int]string, len(c.Extensions))
	for name, id := range c.Extensions {
		if name == "" {
			return fmt.Errorf("%w: empty extension name", types.ErrInvalidArgument)
		}
		// ID 0 保留给扩展握手本身
		if id <= 0 || id > 255 {
			return fmt.Errorf("%w: extension %q id %d out of range", types.ErrInvalidArgument, name, id)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("%w: extensions %q and %q share id %d", types.ErrInvalidArgument, name, other, id)
		}
		seen[id] = name
	}
	if c.RequestQueue < 0 {
		return fmt.Errorf("%w: request queue must not be negative", types.ErrInvalidArgument)
	}
	return nil
}
