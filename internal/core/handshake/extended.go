package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/anacrolix/torrent/bencode"
)

const (
	// MsgExtended 扩展消息 ID
	MsgExtended byte = 20

	// ExtendedHandshakeID 扩展握手的扩展 ID
	ExtendedHandshakeID byte = 0

	// MaxMessageLen 单条消息长度上限
	MaxMessageLen = 1 << 18
)

// ExtendedHandshake 扩展握手负载
type ExtendedHandshake struct {
	// Extensions 扩展名 → 消息 ID，ID 为 0 表示禁用
	Extensions map[string]int `bencode:"m"`

	// Port 监听端口，0 表示未宣告
	Port int `bencode:"p,omitempty"`

	// Version 客户端版本
	Version string `bencode:"v,omitempty"`

	// RequestQueue 请求队列长度
	RequestQueue int `bencode:"reqq,omitempty"`

	// Encryption 是否偏好加密
	Encryption bool `bencode:"e,omitempty"`
}

// IsEmpty 是否没有任何启用的扩展
func (h *ExtendedHandshake) IsEmpty() bool {
	if h == nil {
		return true
	}
	for _, id := range h.Extensions {
		if id > 0 {
			return false
		}
	}
	return true
}

// Clone 返回深拷贝
func (h *ExtendedHandshake) Clone() *ExtendedHandshake {
	c := *h
	c.Extensions = maps.Clone(h.Extensions)
	return &c
}

// Marshal bencode 编码
func (h *ExtendedHandshake) Marshal() ([]byte, error) {
	out := h
	if h.Extensions == nil {
		// m 为必需字段
		out = h.Clone()
		out.Extensions = map[string]int{}
	}
	return bencode.Marshal(out)
}

// ParseExtendedHandshake 解码 bencode 负载
//
// 未知字段被忽略，尾随字节视为可接受。
func ParseExtendedHandshake(payload []byte) (*ExtendedHandshake, error) {
	h := new(ExtendedHandshake)
	err := bencode.Unmarshal(payload, h)
	var trailing bencode.ErrUnusedTrailingBytes
	if err != nil && !errors.As(err, &trailing) {
		return nil, fmt.Errorf("handshake: decode extended handshake: %w", err)
	}
	return h, nil
}

// Message 线路消息
type Message struct {
	// KeepAlive 长度为 0 的保活消息
	KeepAlive bool

	ID         byte
	ExtendedID byte
	Payload    []byte
}

// IsExtendedHandshake 是否为扩展握手消息
func (m *Message) IsExtendedHandshake() bool {
	return !m.KeepAlive && m.ID == MsgExtended && m.ExtendedID == ExtendedHandshakeID
}

// WriteExtendedHandshake 写出扩展握手消息
func WriteExtendedHandshake(w io.Writer, h *ExtendedHandshake) error {
	payload, err := h.Marshal()
	if err != nil {
		return fmt.Errorf("handshake: encode extended handshake: %w", err)
	}
	buf := make([]byte, 4+2+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(2+len(payload)))
	buf[4] = MsgExtended
	buf[5] = ExtendedHandshakeID
	copy(buf[6:], payload)
	_, err = w.Write(buf)
	return err
}

// ReadMessage 读取一条长度前缀的消息
func ReadMessage(r io.Reader) (*Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return &Message{KeepAlive: true}, nil
	}
	if n > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	msg := &Message{ID: body[0]}
	if msg.ID == MsgExtended {
		if len(body) < 2 {
			return nil, fmt.Errorf("%w: truncated extended message", ErrInvalidHandshake)
		}
		msg.ExtendedID = body[1]
		msg.Payload = body[2:]
		return msg, nil
	}
	msg.Payload = body[1:]
	return msg, nil
}

// ReadExtendedHandshake 读取并解码一条扩展握手消息
func ReadExtendedHandshake(r io.Reader) (*ExtendedHandshake, error) {
	msg, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	if !msg.IsExtendedHandshake() {
		return nil, ErrNotExtendedHandshake
	}
	return ParseExtendedHandshake(msg.Payload)
}
