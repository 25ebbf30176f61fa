package dht

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/anacrolix/dht/v2"

	"github.com/dep2p/go-btpeer/config"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// Mainline 基于 anacrolix/dht/v2 的查询后端
type Mainline struct {
	cfg config.DHTConfig

	mu     sync.Mutex
	server *dht.Server
	port   int

	ctx    context.Context
	cancel context.CancelFunc
}

var _ pkgif.DHTLookup = (*Mainline)(nil)

// NewMainline 创建后端，Start 之前不占用端口
func NewMainline(cfg config.DHTConfig) *Mainline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mainline{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Start 绑定 UDP 端口并在后台引导路由表
func (m *Mainline) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return nil
	}
	if m.ctx.Err() != nil {
		return ErrServiceClosed
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", net.JoinHostPort("", strconv.Itoa(m.cfg.Port)))
	if err != nil {
		return fmt.Errorf("bind dht port %d: %w", m.cfg.Port, err)
	}

	scfg := dht.NewDefaultServerConfig()
	scfg.Conn = conn
	nodes := m.cfg.BootstrapNodes
	scfg.StartingNodes = func() ([]dht.Addr, error) {
		return resolveNodes(nodes)
	}

	server, err := dht.NewServer(scfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create dht server: %w", err)
	}
	m.server = server
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		m.port = addr.Port
	}
	logger.Info("DHT 已启动", "port", m.port, "bootstrapNodes", len(nodes))

	go m.bootstrap(server)
	return nil
}

func (m *Mainline) bootstrap(server *dht.Server) {
	ctx := m.ctx
	if t := m.cfg.BootstrapTimeout.Std(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	stats, err := server.BootstrapContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("DHT 引导失败", "error", err)
		return
	}
	logger.Debug("DHT 引导完成", "stats", stats, "nodes", server.NumNodes())
}

// resolveNodes 解析引导节点，部分失败只记录日志
func resolveNodes(hostPorts []string) ([]dht.Addr, error) {
	if len(hostPorts) == 0 {
		return nil, nil
	}
	addrs := make([]dht.Addr, 0, len(hostPorts))
	for _, hp := range hostPorts {
		ua, err := net.ResolveUDPAddr("udp", hp)
		if err != nil {
			logger.Debug("解析引导节点失败", "node", hp, "error", err)
			continue
		}
		addrs = append(addrs, dht.NewAddr(ua))
	}
	if len(addrs) == 0 {
		return nil, ErrNoBootstrapNodes
	}
	return addrs, nil
}

func (m *Mainline) current() (*dht.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return nil, ErrNotStarted
	}
	return m.server, nil
}

// GetPeers 实现 pkgif.DHTLookup
//
// 查询超时视为正常结束。
func (m *Mainline) GetPeers(ctx context.Context, id types.ContentID, onPeer func(*types.Peer), onDone func(error)) error {
	server, err := m.current()
	if err != nil {
		return err
	}
	a, err := server.Announce(id, 0, false)
	if err != nil {
		return err
	}

	go func() {
		defer a.Close()
		for {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					onDone(nil)
				} else {
					onDone(ctx.Err())
				}
				return
			case pv, ok := <-a.Peers:
				if !ok {
					onDone(nil)
					return
				}
				for _, na := range pv.Peers {
					if na.Port <= 0 || na.Port > types.MaxPort || na.IP == nil {
						continue
					}
					onPeer(types.NewPeer(na.IP, na.Port))
				}
			}
		}
	}()
	return nil
}

// Announce 实现 pkgif.DHTLookup，等待遍历结束或 ctx 取消
func (m *Mainline) Announce(ctx context.Context, id types.ContentID, port int) error {
	server, err := m.current()
	if err != nil {
		return err
	}
	a, err := server.Announce(id, port, m.cfg.ImpliedPort)
	if err != nil {
		return err
	}
	defer a.Close()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case _, ok := <-a.Peers:
			if !ok {
				return nil
			}
		}
	}
}

// Port 实现 pkgif.DHTLookup
func (m *Mainline) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// Close 实现 pkgif.DHTLookup
func (m *Mainline) Close() error {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		m.server.Close()
		m.server = nil
	}
	return nil
}
