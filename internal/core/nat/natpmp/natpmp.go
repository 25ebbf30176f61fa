package natpmp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/dep2p/go-btpeer/pkg/lib/log"
)

var logger = log.Logger("nat/natpmp")

// Name 后端名称
const Name = "natpmp"

// DefaultTimeout 默认 NAT-PMP 超时
const DefaultTimeout = 5 * time.Second

// Client NAT-PMP 客户端接口
//
// *natpmp.Client 实现了该接口。
type Client interface {
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
}

// Mapping 端口映射记录
type Mapping struct {
	Protocol     string
	InternalPort int
	ExternalPort int
	Lease        time.Duration
	CreatedAt    time.Time
}

// Mapper NAT-PMP 端口映射器
type Mapper struct {
	client   Client
	gateway  net.IP
	clk      clock.Clock
	renew    time.Duration
	mappings map[string]*Mapping
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMapper 使用已连接的客户端创建映射器
func NewMapper(client Client, gatewayIP net.IP, clk clock.Clock, renewInterval time.Duration) *Mapper {
	if clk == nil {
		clk = clock.New()
	}
	if renewInterval <= 0 {
		renewInterval = 30 * time.Minute
	}
	return &Mapper{
		client:   client,
		gateway:  gatewayIP,
		clk:      clk,
		renew:    renewInterval,
		mappings: make(map[string]*Mapping),
	}
}

// Discover 发现默认网关并验证其支持 NAT-PMP
func Discover(ctx context.Context, timeout, renewInterval time.Duration) (*Mapper, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 1. 发现默认网关
	gatewayIP, err := withContext(ctx, gateway.DiscoverGateway)
	if err != nil {
		return nil, &NATPMPError{Message: "discover gateway", Cause: err}
	}

	// 2. 创建客户端并获取外部地址验证连通性
	client := natpmp.NewClientWithTimeout(gatewayIP, timeout)
	if _, err := withContext(ctx, client.GetExternalAddress); err != nil {
		return nil, &NATPMPError{Message: "test connection", Cause: err}
	}

	logger.Info("NAT-PMP 映射器已创建",
		"gateway", gatewayIP.String(),
		"timeout", timeout)
	return NewMapper(client, gatewayIP, nil, renewInterval), nil
}

// withContext 在 ctx 结束前等待阻塞调用返回
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Name 返回后端名称
func (n *Mapper) Name() string {
	return Name
}

// Gateway 返回网关地址
func (n *Mapper) Gateway() net.IP {
	return n.gateway
}

func mappingKey(proto string, port int) string {
	return fmt.Sprintf("%s:%d", proto, port)
}

// MapPort 映射端口
//
// NAT-PMP 只能为发起请求的主机映射，internalClient 与 description 被忽略。
func (n *Mapper) MapPort(ctx context.Context, proto string, internalPort int, _, _ string, lease time.Duration) (int, error) {
	protocol := strings.ToLower(proto)

	result, err := withContext(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return n.client.AddPortMapping(protocol, internalPort, internalPort, int(lease/time.Second))
	})
	if err != nil {
		return 0, &MappingError{Protocol: proto, Port: internalPort, Cause: err}
	}

	mappedPort := int(result.MappedExternalPort)

	n.mu.Lock()
	n.mappings[mappingKey(protocol, internalPort)] = &Mapping{
		Protocol:     protocol,
		InternalPort: internalPort,
		ExternalPort: mappedPort,
		Lease:        lease,
		CreatedAt:    n.clk.Now(),
	}
	n.mu.Unlock()

	logger.Debug("NAT-PMP 端口映射成功",
		"proto", protocol,
		"internalPort", internalPort,
		"externalPort", mappedPort)
	return mappedPort, nil
}

// UnmapPort 取消端口映射（租期为 0 表示删除）
func (n *Mapper) UnmapPort(proto string, internalPort int) error {
	protocol := strings.ToLower(proto)

	n.mu.Lock()
	_, ok := n.mappings[mappingKey(protocol, internalPort)]
	delete(n.mappings, mappingKey(protocol, internalPort))
	n.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := n.client.AddPortMapping(protocol, internalPort, 0, 0); err != nil {
		return &MappingError{Protocol: proto, Port: internalPort, Cause: err}
	}
	return nil
}

// ExternalIP 获取外部地址
func (n *Mapper) ExternalIP() (string, error) {
	result, err := n.client.GetExternalAddress()
	if err != nil {
		return "", &NATPMPError{Message: "get external address", Cause: err}
	}
	return net.IP(result.ExternalIPAddress[:]).String(), nil
}

// Mappings 返回当前映射快照
func (n *Mapper) Mappings() []Mapping {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Mapping, 0, len(n.mappings))
	for _, m := range n.mappings {
		out = append(out, *m)
	}
	return out
}

// Start 启动续期循环
func (n *Mapper) Start() {
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := n.clk.Ticker(n.renew)
		defer ticker.Stop()
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
				n.RenewMappings(n.ctx)
			}
		}
	}()
}

// Stop 停止续期循环
func (n *Mapper) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

// RenewMappings 续期已超过租期 2/3 的映射
func (n *Mapper) RenewMappings(ctx context.Context) {
	n.mu.RLock()
	mappings := make([]Mapping, 0, len(n.mappings))
	for _, m := range n.mappings {
		mappings = append(mappings, *m)
	}
	n.mu.RUnlock()

	now := n.clk.Now()
	for _, m := range mappings {
		if now.Sub(m.CreatedAt) <= m.Lease*2/3 {
			continue
		}
		if _, err := n.MapPort(ctx, m.Protocol, m.InternalPort, "", "", m.Lease); err != nil {
			logger.Warn("NAT-PMP 映射续期失败", "proto", m.Protocol, "port", m.InternalPort, "error", err)
		}
	}
}

// ============================================================================
//                              错误
// ============================================================================

// NATPMPError NAT-PMP 错误
type NATPMPError struct {
	Message string
	Cause   error
}

func (e *NATPMPError) Error() string {
	if e.Cause != nil {
		return "natpmp: " + e.Message + ": " + e.Cause.Error()
	}
	return "natpmp: " + e.Message
}

func (e *NATPMPError) Unwrap() error {
	return e.Cause
}

// MappingError 端口映射错误
type MappingError struct {
	Protocol string
	Port     int
	Cause    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("natpmp: mapping %s port %d failed: %v", e.Protocol, e.Port, e.Cause)
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}
