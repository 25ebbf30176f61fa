package handshake

import "errors"

var (
	// ErrInvalidHandshake 基础握手格式错误
	ErrInvalidHandshake = errors.New("handshake: invalid base handshake")

	// ErrInfoHashMismatch 远端握手的 info hash 与本地不一致
	ErrInfoHashMismatch = errors.New("handshake: info hash mismatch")

	// ErrInvalidTransition 非法的状态迁移
	ErrInvalidTransition = errors.New("handshake: invalid state transition")

	// ErrMessageTooLarge 消息长度超过上限
	ErrMessageTooLarge = errors.New("handshake: message too large")

	// ErrNotExtendedHandshake 消息不是扩展握手
	ErrNotExtendedHandshake = errors.New("handshake: not an extended handshake message")
)
