package types

import "errors"

// ============================================================================
//                              参数错误
// ============================================================================

var (
	// ErrInvalidArgument 无效参数
	//
	// 配置类错误（非法端口、空节点、非正密钥长度等）统一包装此错误，
	// 调用方使用 errors.Is(err, types.ErrInvalidArgument) 判断。
	ErrInvalidArgument = errors.New("invalid argument")
)

// ============================================================================
//                              ID 相关错误
// ============================================================================

var (
	// ErrInvalidPeerID 无效的节点 ID
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrInvalidContentID 无效的内容 ID
	ErrInvalidContentID = errors.New("invalid content ID")
)

// ============================================================================
//                              加密策略错误
// ============================================================================

var (
	// ErrUnknownEncryptionPolicy 未知的加密策略名称
	ErrUnknownEncryptionPolicy = errors.New("unknown encryption policy")

	// ErrIncompatiblePolicy 双方加密策略不兼容
	ErrIncompatiblePolicy = errors.New("incompatible encryption policies")
)
