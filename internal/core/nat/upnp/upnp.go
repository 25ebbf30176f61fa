package upnp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"

	"github.com/dep2p/go-btpeer/pkg/lib/log"
)

var logger = log.Logger("nat/upnp")

// Name 后端名称
const Name = "upnp"

// DefaultTimeout 默认 UPnP 发现超时
//
// goupnp 的 SSDP 发现可能需要 8 秒以上，超时后快速失败。
const DefaultTimeout = 2 * time.Second

// IGDClient UPnP IGD 客户端接口
//
// goupnp 的 WANIPConnection1 与 WANPPPConnection1（v1/v2）都实现了这些方法。
type IGDClient interface {
	AddPortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
		NewInternalPort uint16,
		NewInternalClient string,
		NewEnabled bool,
		NewPortMappingDescription string,
		NewLeaseDuration uint32,
	) error

	DeletePortMapping(
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
	) error

	GetExternalIPAddress() (string, error)
}

// Mapping 端口映射记录
type Mapping struct {
	Protocol       string
	InternalPort   int
	ExternalPort   int
	InternalClient string
	Description    string
	Lease          time.Duration
	CreatedAt      time.Time
}

// Mapper UPnP 端口映射器
type Mapper struct {
	client   IGDClient
	clk      clock.Clock
	renew    time.Duration
	mappings map[string]*Mapping
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMapper 使用已发现的 IGD 客户端创建映射器
func NewMapper(client IGDClient, clk clock.Clock, renewInterval time.Duration) *Mapper {
	if clk == nil {
		clk = clock.New()
	}
	if renewInterval <= 0 {
		renewInterval = 30 * time.Minute
	}
	return &Mapper{
		client:   client,
		clk:      clk,
		renew:    renewInterval,
		mappings: make(map[string]*Mapping),
	}
}

// Discover 发现 UPnP 网关并创建映射器
//
// 依次尝试 IGDv2 与 IGDv1 的 WANIPConnection / WANPPPConnection 服务。
func Discover(ctx context.Context, timeout, renewInterval time.Duration) (*Mapper, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		client IGDClient
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		client, err := discoverClient(ctx)
		resultCh <- result{client: client, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return NewMapper(res.client, nil, renewInterval), nil
	case <-ctx.Done():
		return nil, &UPnPError{Message: fmt.Sprintf("discovery timeout after %v", timeout), Cause: ctx.Err()}
	}
}

func discoverClient(ctx context.Context) (IGDClient, error) {
	if clients, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway1.NewWANIPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway1.NewWANPPPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	return nil, ErrNoUPnPDevice
}

// Name 返回后端名称
func (u *Mapper) Name() string {
	return Name
}

func mappingKey(proto string, port int) string {
	return fmt.Sprintf("%s:%d", proto, port)
}

// MapPort 映射端口，外部端口尝试与内部端口相同
func (u *Mapper) MapPort(ctx context.Context, proto string, internalPort int, internalClient, description string, lease time.Duration) (int, error) {
	upnpProto := strings.ToUpper(proto)
	externalPort := internalPort

	err := u.client.AddPortMappingCtx(ctx,
		"",                   // NewRemoteHost (空=任意)
		uint16(externalPort), // NewExternalPort
		upnpProto,            // "UDP" 或 "TCP"
		uint16(internalPort), // NewInternalPort
		internalClient,       // NewInternalClient
		true,                 // NewEnabled
		description,          // NewPortMappingDescription
		uint32(lease/time.Second),
	)
	if err != nil {
		return 0, &MappingError{Protocol: proto, Port: internalPort, Cause: err}
	}

	u.mu.Lock()
	u.mappings[mappingKey(proto, internalPort)] = &Mapping{
		Protocol:       proto,
		InternalPort:   internalPort,
		ExternalPort:   externalPort,
		InternalClient: internalClient,
		Description:    description,
		Lease:          lease,
		CreatedAt:      u.clk.Now(),
	}
	u.mu.Unlock()

	logger.Debug("UPnP 端口映射成功",
		"proto", proto,
		"internalPort", internalPort,
		"externalPort", externalPort)
	return externalPort, nil
}

// UnmapPort 取消端口映射
func (u *Mapper) UnmapPort(proto string, internalPort int) error {
	u.mu.Lock()
	m, ok := u.mappings[mappingKey(proto, internalPort)]
	delete(u.mappings, mappingKey(proto, internalPort))
	u.mu.Unlock()

	if !ok {
		return nil
	}
	if err := u.client.DeletePortMapping("", uint16(m.ExternalPort), strings.ToUpper(proto)); err != nil {
		return &MappingError{Protocol: proto, Port: m.ExternalPort, Cause: err}
	}
	return nil
}

// ExternalIP 获取路由器的外部 IP 地址
func (u *Mapper) ExternalIP() (string, error) {
	ip, err := u.client.GetExternalIPAddress()
	if err != nil {
		return "", &UPnPError{Message: "get external ip", Cause: err}
	}
	return ip, nil
}

// Mappings 返回当前映射快照
func (u *Mapper) Mappings() []Mapping {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Mapping, 0, len(u.mappings))
	for _, m := range u.mappings {
		out = append(out, *m)
	}
	return out
}

// Start 启动续期循环
func (u *Mapper) Start() {
	// 后台循环不受上层 ctx 取消的影响
	u.ctx, u.cancel = context.WithCancel(context.Background())
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.renewLoop(u.ctx)
	}()
}

// Stop 停止续期循环
func (u *Mapper) Stop() {
	if u.cancel != nil {
		u.cancel()
	}
	u.wg.Wait()
}

// renewLoop 续期循环
func (u *Mapper) renewLoop(ctx context.Context) {
	ticker := u.clk.Ticker(u.renew)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.RenewMappings(ctx)
		}
	}
}

// RenewMappings 续期已超过租期 2/3 的映射
func (u *Mapper) RenewMappings(ctx context.Context) {
	u.mu.RLock()
	mappings := make([]Mapping, 0, len(u.mappings))
	for _, m := range u.mappings {
		mappings = append(mappings, *m)
	}
	u.mu.RUnlock()

	now := u.clk.Now()
	for _, m := range mappings {
		if now.Sub(m.CreatedAt) <= m.Lease*2/3 {
			continue
		}
		if _, err := u.MapPort(ctx, m.Protocol, m.InternalPort, m.InternalClient, m.Description, m.Lease); err != nil {
			logger.Warn("UPnP 映射续期失败", "proto", m.Protocol, "port", m.InternalPort, "error", err)
		}
	}
}

// ============================================================================
//                              错误
// ============================================================================

// ErrNoUPnPDevice 未找到 UPnP 设备
var ErrNoUPnPDevice = &UPnPError{Message: "no UPnP device found"}

// UPnPError UPnP 错误
type UPnPError struct {
	Message string
	Cause   error
}

func (e *UPnPError) Error() string {
	if e.Cause != nil {
		return "upnp: " + e.Message + ": " + e.Cause.Error()
	}
	return "upnp: " + e.Message
}

func (e *UPnPError) Unwrap() error {
	return e.Cause
}

// MappingError 端口映射错误
type MappingError struct {
	Protocol string
	Port     int
	Cause    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("upnp: mapping %s port %d failed: %v", e.Protocol, e.Port, e.Cause)
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}
