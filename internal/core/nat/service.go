package nat

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/nat/natpmp"
	"github.com/dep2p/go-btpeer/internal/core/nat/upnp"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("core/nat")

// Backend 端口映射后端
//
// upnp.Mapper 与 natpmp.Mapper 实现了该接口。
type Backend interface {
	Name() string
	MapPort(ctx context.Context, proto string, internalPort int, internalClient, description string, lease time.Duration) (int, error)
	UnmapPort(proto string, internalPort int) error
	Start()
	Stop()
}

// Discoverer 后端发现函数
type Discoverer func(ctx context.Context, timeout time.Duration) (Backend, error)

// UPnPDiscoverer 返回 UPnP 后端发现函数
func UPnPDiscoverer(renew time.Duration) Discoverer {
	return func(ctx context.Context, timeout time.Duration) (Backend, error) {
		m, err := upnp.Discover(ctx, timeout, renew)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// NATPMPDiscoverer 返回 NAT-PMP 后端发现函数
func NATPMPDiscoverer(renew time.Duration) Discoverer {
	return func(ctx context.Context, timeout time.Duration) (Backend, error) {
		m, err := natpmp.Discover(ctx, timeout, renew)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// mapped 已映射端口记录
type mapped struct {
	backend Backend
	proto   string
	port    int
}

// Service 组合端口映射服务
//
// 实现 pkgif.PortMapper。
type Service struct {
	cfg         config.NATConfig
	discoverers []Discoverer

	mu       sync.Mutex
	backends []Backend
	mappings map[string]mapped
	closed   bool
}

var _ pkgif.PortMapper = (*Service)(nil)

// Option 服务选项
type Option func(*Service)

// WithDiscoverers 替换后端发现函数（按顺序尝试）
func WithDiscoverers(d ...Discoverer) Option {
	return func(s *Service) {
		s.discoverers = d
	}
}

// NewService 创建端口映射服务
func NewService(cfg config.NATConfig, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		mappings: make(map[string]mapped),
	}
	if cfg.EnableUPnP {
		s.discoverers = append(s.discoverers, UPnPDiscoverer(cfg.RenewalInterval.Std()))
	}
	if cfg.EnableNATPMP {
		s.discoverers = append(s.discoverers, NATPMPDiscoverer(cfg.RenewalInterval.Std()))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MapPort 请求映射本地端口
func (s *Service) MapPort(ctx context.Context, port int, address, protocol, description string) error {
	if port <= 0 || port > types.MaxPort {
		return fmt.Errorf("%w: port %d out of range", types.ErrInvalidArgument, port)
	}
	proto := strings.ToLower(protocol)
	if proto != pkgif.ProtocolTCP && proto != pkgif.ProtocolUDP {
		return fmt.Errorf("%w: unsupported protocol %q", types.ErrInvalidArgument, protocol)
	}
	if !s.cfg.Enabled() {
		return ErrNATDisabled
	}

	backends, err := s.ensureBackends(ctx)
	if err != nil {
		return err
	}

	client := resolveClient(address)
	lease := s.cfg.MappingDuration.Std()

	var errs error
	for _, b := range backends {
		ext, err := b.MapPort(ctx, proto, port, client, description, lease)
		if err != nil {
			logger.Debug("后端映射失败，尝试下一个", "backend", b.Name(), "port", port, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}

		s.mu.Lock()
		s.mappings[key(proto, port)] = mapped{backend: b, proto: proto, port: port}
		s.mu.Unlock()

		logger.Info("端口映射成功",
			"backend", b.Name(),
			"proto", proto,
			"internalPort", port,
			"externalPort", ext,
			"client", client)
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMappingFailed, errs)
}

// ensureBackends 惰性发现后端
//
// 发现失败不缓存，下一次 MapPort 会重新发现。
func (s *Service) ensureBackends(ctx context.Context) ([]Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if len(s.backends) > 0 {
		return s.backends, nil
	}

	var errs error
	for _, discover := range s.discoverers {
		b, err := discover(ctx, s.cfg.Timeout.Std())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.Start()
		s.backends = append(s.backends, b)
		logger.Info("发现端口映射后端", "backend", b.Name())
	}
	if len(s.backends) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoGateway, errs)
	}
	return s.backends, nil
}

// Backends 返回已发现的后端名称
func (s *Service) Backends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.backends))
	for _, b := range s.backends {
		names = append(names, b.Name())
	}
	return names
}

// Close 撤销所有映射并停止后端
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	mappings := s.mappings
	s.mappings = make(map[string]mapped)
	backends := s.backends
	s.backends = nil
	s.mu.Unlock()

	var errs error
	for _, m := range mappings {
		errs = multierr.Append(errs, m.backend.UnmapPort(m.proto, m.port))
	}
	for _, b := range backends {
		b.Stop()
	}
	return errs
}

func key(proto string, port int) string {
	return fmt.Sprintf("%s:%d", proto, port)
}

// resolveClient 确定映射的内部客户端地址
//
// 空地址或未指定地址时使用本机局域网地址。
func resolveClient(address string) string {
	if address != "" {
		if ip := net.ParseIP(address); ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
	}
	if ip := getLocalIP(); ip != nil {
		return ip.String()
	}
	return ""
}

// getLocalIP 获取第一个非回环的 IPv4 地址，优先私有地址
func getLocalIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var fallback net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		if ip4.IsPrivate() {
			return ip4
		}
		if fallback == nil {
			fallback = ip4
		}
	}
	return fallback
}
