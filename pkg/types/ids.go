package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDLength PeerID 与 ContentID 的字节长度
const IDLength = 20

// ============================================================================
//                              PeerID - 节点身份
// ============================================================================

// PeerID 协议参与者的固定长度身份标识
//
// 在会话开始时创建一次，之后不可变。
type PeerID [IDLength]byte

// EmptyPeerID 空节点 ID
var EmptyPeerID PeerID

// PeerIDFromBytes 从字节切片构造 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	var id PeerID
	if len(b) != IDLength {
		return id, fmt.Errorf("%w: length %d, want %d", ErrInvalidPeerID, len(b), IDLength)
	}
	copy(id[:], b)
	return id, nil
}

// PeerIDFromHex 从 40 位十六进制字符串构造 PeerID
func PeerIDFromHex(s string) (PeerID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return PeerIDFromBytes(b)
}

// RandomPeerID 生成带客户端前缀的随机 PeerID
//
// 前缀遵循 Azureus 风格（例如 "-BP0100-"），超出 20 字节的部分被截断。
func RandomPeerID(prefix string) (PeerID, error) {
	var id PeerID
	n := copy(id[:], prefix)
	if _, err := rand.Read(id[n:]); err != nil {
		return id, fmt.Errorf("generate peer id: %w", err)
	}
	return id, nil
}

// IsEmpty 是否为空 ID
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Bytes 返回字节副本
func (id PeerID) Bytes() []byte {
	b := make([]byte, IDLength)
	copy(b, id[:])
	return b
}

// String 返回十六进制表示
func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString 返回用于日志的短格式
func (id PeerID) ShortString() string {
	return id.String()[:8]
}

// ============================================================================
//                              ContentID - 内容标识
// ============================================================================

// ContentID 共享内容（swarm）的固定长度标识，即 torrent info hash 的抽象
//
// 所有按 swarm 划分的状态（发现源、调度、注册表）都以它为键。
type ContentID [IDLength]byte

// ContentIDFromBytes 从字节切片构造 ContentID
func ContentIDFromBytes(b []byte) (ContentID, error) {
	var id ContentID
	if len(b) != IDLength {
		return id, fmt.Errorf("%w: length %d, want %d", ErrInvalidContentID, len(b), IDLength)
	}
	copy(id[:], b)
	return id, nil
}

// ContentIDFromHex 从 40 位十六进制字符串构造 ContentID
func ContentIDFromHex(s string) (ContentID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ContentID{}, fmt.Errorf("%w: %v", ErrInvalidContentID, err)
	}
	return ContentIDFromBytes(b)
}

// Bytes 返回字节副本
func (id ContentID) Bytes() []byte {
	b := make([]byte, IDLength)
	copy(b, id[:])
	return b
}

// String 返回十六进制表示
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString 返回用于日志的短格式
func (id ContentID) ShortString() string {
	return id.String()[:8]
}
