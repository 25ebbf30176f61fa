package config

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// SecurityConfig 传输加密配置
type SecurityConfig struct {
	// EncryptionPolicy 加密策略
	// 可选：require-plaintext / prefer-plaintext / prefer-encrypted / require-encrypted
	EncryptionPolicy string `json:"encryption_policy"`

	// CipherAlgorithm MSE 流密码算法，目前只支持 rc4
	CipherAlgorithm string `json:"cipher_algorithm"`
}

// DefaultSecurityConfig 返回默认安全配置
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EncryptionPolicy: types.PreferEncrypted.String(),
		CipherAlgorithm:  "rc4",
	}
}

// Policy 返回解析后的加密策略
func (c SecurityConfig) Policy() (types.EncryptionPolicy, error) {
	return types.ParseEncryptionPolicy(c.EncryptionPolicy)
}

// Validate 验证安全配置
func (c SecurityConfig) Validate() error {
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	switch strings.ToLower(c.CipherAlgorithm) {
	case "rc4", "arcfour":
		return nil
	default:
		return fmt.Errorf("%w: unsupported cipher algorithm %q", types.ErrInvalidArgument, c.CipherAlgorithm)
	}
}
