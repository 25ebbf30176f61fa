package handshake

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-btpeer/internal/core/mse"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// Options 协商参数
type Options struct {
	// ContentID 本地期望的内容
	ContentID types.ContentID

	// LocalPeerID 本地身份
	LocalPeerID types.PeerID

	// RemotePeer 远端节点记录，端口可能未知
	RemotePeer *types.Peer

	// Initiator 本地是否为连接发起方
	Initiator bool

	// Cipher 非 nil 时连接先用 MSE 加密
	Cipher *mse.Cipher

	Handler  *Handler
	Consumer *Consumer
}

// Result 协商结果
type Result struct {
	// Conn 协商后的连接（可能已加密）
	Conn net.Conn

	// Remote 远端基础握手
	Remote *Handshake

	// Extended 远端扩展握手，未收到时为 nil
	Extended *ExtendedHandshake

	// Pending 扩展握手之前到达的首条其他消息，由调用方继续处理
	Pending *Message

	// Negotiation 最终状态机
	Negotiation *Negotiation
}

// wireConn 在 net.Conn 上实现 Connection
type wireConn struct {
	conn net.Conn
	id   types.ContentID
	peer *types.Peer
}

func (w *wireConn) ContentID() types.ContentID { return w.id }
func (w *wireConn) RemotePeer() *types.Peer    { return w.peer }

func (w *wireConn) PostExtendedHandshake(h *ExtendedHandshake) error {
	return WriteExtendedHandshake(w.conn, h)
}

// Negotiate 在连接上完成基础握手与扩展能力交换
//
// ctx 取消或到期后将连接截止时间设为过去，中断阻塞的读写。
func Negotiate(ctx context.Context, conn net.Conn, opts Options) (*Result, error) {
	if opts.Handler == nil || opts.RemotePeer == nil {
		return nil, fmt.Errorf("%w: handler and remote peer are required", types.ErrInvalidArgument)
	}
	if opts.Cipher != nil {
		conn = opts.Cipher.WrapConn(conn)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}()

	res, err := negotiate(conn, opts)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("handshake: %w: %w", ctx.Err(), err)
	}
	return res, err
}

func negotiate(conn net.Conn, opts Options) (*Result, error) {
	n := NewNegotiation()
	res := &Result{Conn: conn, Negotiation: n}

	local := NewHandshake(opts.ContentID, opts.LocalPeerID)
	opts.Handler.ProcessOutgoing(opts.ContentID, local)

	send := func() error {
		if err := WriteHandshake(conn, local); err != nil {
			return fmt.Errorf("handshake: write base handshake: %w", err)
		}
		return n.Transition(StateBaseHandshakeSent)
	}
	recv := func() error {
		remote, err := ReadHandshake(conn)
		if err != nil {
			return fmt.Errorf("handshake: read base handshake: %w", err)
		}
		if remote.InfoHash != opts.ContentID {
			return fmt.Errorf("%w: got %s", ErrInfoHashMismatch, remote.InfoHash.ShortString())
		}
		res.Remote = remote
		return n.Transition(StateBaseHandshakeReceived)
	}

	// 发起方先发后收，接收方先收后发
	steps := []func() error{send, recv}
	if !opts.Initiator {
		steps = []func() error{recv, send}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	wc := &wireConn{conn: conn, id: opts.ContentID, peer: opts.RemotePeer}

	// 双方可能同时发送扩展握手，写入放到独立 goroutine 中避免同步管道死锁
	type sendResult struct {
		sent bool
		err  error
	}
	sendCh := make(chan sendResult, 1)
	go func() {
		sent, err := opts.Handler.ProcessIncoming(wc)
		sendCh <- sendResult{sent: sent, err: err}
	}()

	var recvErr error
	if res.Remote.SupportsExtended() {
		res.Extended, res.Pending, recvErr = readExtended(conn)
	}

	if recvErr != nil {
		// 中断可能仍阻塞的写入
		_ = conn.SetDeadline(time.Unix(1, 0))
		<-sendCh
		return nil, recvErr
	}
	sr := <-sendCh
	if sr.err != nil {
		return nil, sr.err
	}

	if sr.sent {
		if err := n.Transition(StateExtendedCapabilitiesSent); err != nil {
			return nil, err
		}
	}
	if res.Extended != nil {
		if opts.Consumer != nil {
			opts.Consumer.Consume(wc, res.Extended)
		}
		if err := n.Transition(StateExtendedCapabilitiesReceived); err != nil {
			return nil, err
		}
	}
	if err := n.Transition(StateNegotiated); err != nil {
		return nil, err
	}
	return res, nil
}

// readExtended 读取远端扩展握手
//
// 跳过保活消息；若先到达其他消息，则视为远端不发送扩展握手并返回该消息。
func readExtended(conn net.Conn) (*ExtendedHandshake, *Message, error) {
	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			return nil, nil, fmt.Errorf("handshake: read extended handshake: %w", err)
		}
		if msg.KeepAlive {
			continue
		}
		if !msg.IsExtendedHandshake() {
			return nil, msg, nil
		}
		ext, err := ParseExtendedHandshake(msg.Payload)
		if err != nil {
			return nil, nil, err
		}
		return ext, nil, nil
	}
}
