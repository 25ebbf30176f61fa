package handshake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dep2p/go-btpeer/pkg/types"
)

const (
	// ProtocolName 协议标识
	ProtocolName = "BitTorrent protocol"

	// HandshakeLen 基础握手长度
	HandshakeLen = 1 + len(ProtocolName) + 8 + 20 + 20

	// ExtendedProtocolBit 扩展协议保留位（MSB 优先）
	ExtendedProtocolBit = 43
)

// Reserved 8 字节保留位
type Reserved [8]byte

// SetBit 设置第 i 位（0 为 reserved[0] 的最高位）
func (r *Reserved) SetBit(i int) {
	if i < 0 || i >= 64 {
		return
	}
	r[i/8] |= 0x80 >> (i % 8)
}

// IsSet 第 i 位是否已设置
func (r Reserved) IsSet(i int) bool {
	if i < 0 || i >= 64 {
		return false
	}
	return r[i/8]&(0x80>>(i%8)) != 0
}

// Handshake 基础握手
type Handshake struct {
	Reserved Reserved
	InfoHash types.ContentID
	PeerID   types.PeerID
}

// NewHandshake 创建未设置任何保留位的握手
func NewHandshake(infoHash types.ContentID, peerID types.PeerID) *Handshake {
	return &Handshake{InfoHash: infoHash, PeerID: peerID}
}

// SupportsExtended 是否声明支持扩展协议
func (h *Handshake) SupportsExtended() bool {
	return h.Reserved.IsSet(ExtendedProtocolBit)
}

// MarshalBinary 编码为 68 字节
func (h *Handshake) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, byte(len(ProtocolName)))
	buf = append(buf, ProtocolName...)
	buf = append(buf, h.Reserved[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	return buf, nil
}

// UnmarshalBinary 从 68 字节解码
func (h *Handshake) UnmarshalBinary(b []byte) error {
	if len(b) != HandshakeLen {
		return fmt.Errorf("%w: length %d", ErrInvalidHandshake, len(b))
	}
	if int(b[0]) != len(ProtocolName) || !bytes.Equal(b[1:20], []byte(ProtocolName)) {
		return fmt.Errorf("%w: unknown protocol", ErrInvalidHandshake)
	}
	copy(h.Reserved[:], b[20:28])
	copy(h.InfoHash[:], b[28:48])
	copy(h.PeerID[:], b[48:68])
	return nil
}

// WriteHandshake 写出基础握手
func WriteHandshake(w io.Writer, h *Handshake) error {
	b, _ := h.MarshalBinary()
	_, err := w.Write(b)
	return err
}

// ReadHandshake 读取基础握手
func ReadHandshake(r io.Reader) (*Handshake, error) {
	buf := make([]byte, HandshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h := new(Handshake)
	if err := h.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return h, nil
}
