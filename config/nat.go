package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// NATConfig NAT 端口映射配置
//
// 映射按 UPnP → NAT-PMP 的顺序尝试，第一个成功的后端生效。
// 映射失败不影响启动（NAT 穿透是尽力而为）。
type NATConfig struct {
	// EnableUPnP 是否启用 UPnP 端口映射
	EnableUPnP bool `json:"enable_upnp"`

	// EnableNATPMP 是否启用 NAT-PMP 端口映射
	EnableNATPMP bool `json:"enable_natpmp"`

	// MappingDuration 端口映射租期
	MappingDuration Duration `json:"mapping_duration"`

	// RenewalInterval 续期间隔，需小于租期
	RenewalInterval Duration `json:"renewal_interval"`

	// Timeout 单次网关操作超时
	Timeout Duration `json:"timeout"`
}

// DefaultNATConfig 返回默认 NAT 配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		EnableUPnP:      true,
		EnableNATPMP:    true,
		MappingDuration: Duration(1 * time.Hour),    // 端口映射租期：1 小时
		RenewalInterval: Duration(30 * time.Minute), // 续期间隔：30 分钟，在过期前续期
		Timeout:         Duration(5 * time.Second),  // 操作超时 5 秒
	}
}

// Enabled 是否启用了任一映射后端
func (c NATConfig) Enabled() bool {
	return c.EnableUPnP || c.EnableNATPMP
}

// Validate 验证 NAT 配置
func (c NATConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.MappingDuration <= 0 {
		return fmt.Errorf("%w: mapping duration must be positive", types.ErrInvalidArgument)
	}
	if c.RenewalInterval <= 0 || c.RenewalInterval >= c.MappingDuration {
		return fmt.Errorf("%w: renewal interval must be positive and less than mapping duration", types.ErrInvalidArgument)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: nat timeout must be positive", types.ErrInvalidArgument)
	}
	return nil
}
