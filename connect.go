package btpeer

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-btpeer/internal/core/handshake"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// NegotiateRequest 连接协商参数
type NegotiateRequest struct {
	// ContentID 连接所属内容
	ContentID types.ContentID

	// Remote 远端节点，入站连接的端口可为 types.PortUnknown
	Remote *types.Peer

	// RemotePolicy 远端的加密策略
	RemotePolicy types.EncryptionPolicy

	// Secret MSE 共享密钥，选择加密时必填
	Secret []byte

	// Initiator 本地是否为发起方
	Initiator bool
}

// PeerConn 已完成协商并登记到连接池的连接
type PeerConn struct {
	net.Conn

	id        string
	contentID types.ContentID
	peer      *types.Peer
	encrypted bool

	// Remote 远端基础握手
	Remote *handshake.Handshake

	// Extended 远端扩展握手，未收到时为 nil
	Extended *handshake.ExtendedHandshake

	// Pending 扩展握手之前到达的首条其他消息
	Pending *handshake.Message

	raw       net.Conn
	closeOnce sync.Once
	closeErr  error
}

// ID 连接池中的连接 ID
func (c *PeerConn) ID() string { return c.id }

// ContentID 连接所属内容
func (c *PeerConn) ContentID() types.ContentID { return c.contentID }

// RemotePeer 远端节点，扩展握手后端口已补全
func (c *PeerConn) RemotePeer() *types.Peer { return c.peer }

// Encrypted 连接是否经 MSE 加密
func (c *PeerConn) Encrypted() bool { return c.encrypted }

// Close 关闭底层连接，可重复调用
func (c *PeerConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

// Negotiate 在已建立的连接上完成加密选择与握手，并登记到连接池
//
// 连接在握手前先登记，扩展握手补全端口后由连接池处理重复连接；
// 本连接被判定为重复时关闭并返回 ErrDuplicateConnection。
// 失败时 conn 会被关闭。
func (n *Node) Negotiate(ctx context.Context, conn net.Conn, req NegotiateRequest) (pc *PeerConn, err error) {
	if !n.IsRunning() {
		conn.Close()
		return nil, ErrNotStarted
	}
	if req.Remote == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: nil remote peer", types.ErrInvalidArgument)
	}
	if !n.torrents.IsSupportedAndActive(req.ContentID) {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnknownContent, req.ContentID.ShortString())
	}

	wrapped, encrypted, err := n.negotiator.Negotiate(conn, req.RemotePolicy, req.Secret, req.ContentID, req.Initiator)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("negotiate encryption: %w", err)
	}

	pc = &PeerConn{
		Conn:      wrapped,
		contentID: req.ContentID,
		peer:      req.Remote,
		encrypted: encrypted,
		raw:       conn,
	}
	pc.id, err = n.pool.Add(req.ContentID, pc)
	if err != nil {
		pc.Close()
		return nil, err
	}
	defer func() {
		if err != nil {
			n.pool.Remove(pc.id)
			pc.Close()
		}
	}()

	res, err := handshake.Negotiate(ctx, wrapped, handshake.Options{
		ContentID:   req.ContentID,
		LocalPeerID: n.local.ID,
		RemotePeer:  req.Remote,
		Initiator:   req.Initiator,
		Handler:     n.handler,
		Consumer:    n.consumer,
	})
	if err != nil {
		return nil, err
	}
	pc.Remote, pc.Extended, pc.Pending = res.Remote, res.Extended, res.Pending

	if !n.inPool(req.ContentID, pc.id) {
		return nil, ErrDuplicateConnection
	}
	logger.Debug("连接协商完成",
		"content", req.ContentID.ShortString(),
		"peer", req.Remote.String(),
		"encrypted", encrypted,
		"extended", res.Extended != nil)
	return pc, nil
}

func (n *Node) inPool(id types.ContentID, connID string) bool {
	for _, info := range n.pool.Connections(id) {
		if info.ID == connID {
			return true
		}
	}
	return false
}
