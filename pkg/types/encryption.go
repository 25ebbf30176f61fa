package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              EncryptionPolicy - 加密策略
// ============================================================================

// EncryptionPolicy 传输加密策略
//
// 四值兼容格：仅当一方要求明文且另一方要求加密时不兼容。
type EncryptionPolicy int

const (
	// RequirePlaintext 只接受明文
	RequirePlaintext EncryptionPolicy = iota
	// PreferPlaintext 优先明文，可接受加密
	PreferPlaintext
	// PreferEncrypted 优先加密，可接受明文
	PreferEncrypted
	// RequireEncrypted 只接受加密
	RequireEncrypted
)

// String 返回策略名称
func (p EncryptionPolicy) String() string {
	switch p {
	case RequirePlaintext:
		return "require-plaintext"
	case PreferPlaintext:
		return "prefer-plaintext"
	case PreferEncrypted:
		return "prefer-encrypted"
	case RequireEncrypted:
		return "require-encrypted"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParseEncryptionPolicy 解析策略名称
func ParseEncryptionPolicy(s string) (EncryptionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "require-plaintext", "plaintext":
		return RequirePlaintext, nil
	case "prefer-plaintext":
		return PreferPlaintext, nil
	case "prefer-encrypted", "":
		return PreferEncrypted, nil
	case "require-encrypted", "encrypted":
		return RequireEncrypted, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncryptionPolicy, s)
	}
}

// IsCompatible 两个策略能否协商出共同的传输
func (p EncryptionPolicy) IsCompatible(other EncryptionPolicy) bool {
	switch {
	case p == RequirePlaintext && other == RequireEncrypted:
		return false
	case p == RequireEncrypted && other == RequirePlaintext:
		return false
	default:
		return true
	}
}

// AllowsEncryption 是否可以使用加密传输
func (p EncryptionPolicy) AllowsEncryption() bool {
	return p != RequirePlaintext
}

// AllowsPlaintext 是否可以使用明文传输
func (p EncryptionPolicy) AllowsPlaintext() bool {
	return p != RequireEncrypted
}

// SelectEncryption 根据双方策略决定是否加密
//
// 规则：
//   - 不兼容时返回 ErrIncompatiblePolicy
//   - 任一方 Require* 时以其为准
//   - 否则任一方偏好加密即加密
func SelectEncryption(local, remote EncryptionPolicy) (bool, error) {
	if !local.IsCompatible(remote) {
		return false, fmt.Errorf("%w: local=%s remote=%s", ErrIncompatiblePolicy, local, remote)
	}
	switch {
	case local == RequireEncrypted || remote == RequireEncrypted:
		return true, nil
	case local == RequirePlaintext || remote == RequirePlaintext:
		return false, nil
	case local == PreferEncrypted || remote == PreferEncrypted:
		return true, nil
	default:
		return false, nil
	}
}
