package handshake

import (
	"fmt"
	"sync"
)

// State 协商状态
type State int

const (
	StateInit State = iota
	StateBaseHandshakeSent
	StateBaseHandshakeReceived
	StateExtendedCapabilitiesSent
	StateExtendedCapabilitiesReceived
	StateNegotiated
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBaseHandshakeSent:
		return "base-handshake-sent"
	case StateBaseHandshakeReceived:
		return "base-handshake-received"
	case StateExtendedCapabilitiesSent:
		return "extended-capabilities-sent"
	case StateExtendedCapabilitiesReceived:
		return "extended-capabilities-received"
	case StateNegotiated:
		return "negotiated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Negotiation 单条连接的协商状态机
//
// 基础握手的发送与接收顺序取决于连接方向，两者都完成后才能交换扩展能力。
// 每个状态至多进入一次，Negotiated 为终态。
type Negotiation struct {
	mu      sync.Mutex
	state   State
	visited [StateNegotiated + 1]bool
}

// NewNegotiation 创建处于 StateInit 的状态机
func NewNegotiation() *Negotiation {
	n := &Negotiation{}
	n.visited[StateInit] = true
	return n
}

// State 返回当前状态
func (n *Negotiation) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Visited 是否经过了状态 s
func (n *Negotiation) Visited(s State) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s < StateInit || s > StateNegotiated {
		return false
	}
	return n.visited[s]
}

// Transition 迁移到状态 to
func (n *Negotiation) Transition(to State) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if to <= StateInit || to > StateNegotiated || n.state == StateNegotiated || n.visited[to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.state, to)
	}

	switch to {
	case StateExtendedCapabilitiesSent, StateExtendedCapabilitiesReceived, StateNegotiated:
		if !n.visited[StateBaseHandshakeSent] || !n.visited[StateBaseHandshakeReceived] {
			return fmt.Errorf("%w: %s -> %s before base handshake completed", ErrInvalidTransition, n.state, to)
		}
	}

	n.visited[to] = true
	n.state = to
	return nil
}
