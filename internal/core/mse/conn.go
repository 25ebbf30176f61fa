package mse

import (
	"net"
	"sync"
)

// Conn MSE 加密连接
//
// 流密码不改变长度，读写直接在底层连接上进行，无需分帧。
type Conn struct {
	net.Conn

	cipher *Cipher

	readMu   sync.Mutex
	writeMu  sync.Mutex
	writeBuf []byte
}

// WrapConn 用密码对包装连接
func (c *Cipher) WrapConn(conn net.Conn) net.Conn {
	return &Conn{Conn: conn, cipher: c}
}

// Read 读取并解密
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	n, err := c.Conn.Read(p)
	if n > 0 {
		c.cipher.Decrypt(p[:n])
	}
	return n, err
}

// Write 加密并写入
//
// 不修改调用方的缓冲区。部分写入后密钥流已推进，连接应视为不可用。
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if cap(c.writeBuf) < len(p) {
		c.writeBuf = make([]byte, len(p))
	}
	buf := c.writeBuf[:len(p)]
	copy(buf, p)
	c.cipher.Encrypt(buf)
	return c.Conn.Write(buf)
}

// Cipher 返回连接使用的密码对
func (c *Conn) Cipher() *Cipher {
	return c.cipher
}
