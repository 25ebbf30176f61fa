package btpeer

import (
	"fmt"
	"net"

	"go.uber.org/fx"

	"github.com/dep2p/go-btpeer/config"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// Option 用户配置选项函数
type Option func(*nodeConfig) error

// nodeConfig 节点配置
type nodeConfig struct {
	config *config.Config

	// torrents 用户提供的内容状态
	torrents pkgif.TorrentRegistry

	// factories 额外的发现源工厂
	factories []pkgif.PeerSourceFactory

	// userFxOptions 用户自定义 Fx 选项
	userFxOptions []fx.Option

	// fxLogging 是否输出 Fx 内部事件
	fxLogging bool
}

func newNodeConfig() *nodeConfig {
	return &nodeConfig{config: config.NewConfig()}
}

// WithConfig 使用完整配置，之后的选项在其基础上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(c *nodeConfig) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", types.ErrInvalidArgument)
		}
		c.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(c *nodeConfig) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// WithTorrentRegistry 使用外部的内容状态提供方替换内置登记表
func WithTorrentRegistry(reg pkgif.TorrentRegistry) Option {
	return func(c *nodeConfig) error {
		if reg == nil {
			return fmt.Errorf("%w: nil torrent registry", types.ErrInvalidArgument)
		}
		c.torrents = reg
		return nil
	}
}

// WithPeerSourceFactory 添加发现源工厂，由 PeerRegistry 为非私有内容轮询
func WithPeerSourceFactory(f pkgif.PeerSourceFactory) Option {
	return func(c *nodeConfig) error {
		if f == nil {
			return fmt.Errorf("%w: nil peer source factory", types.ErrInvalidArgument)
		}
		c.factories = append(c.factories, f)
		return nil
	}
}

// WithListenPort 设置对外宣告的 TCP 监听端口
func WithListenPort(port int) Option {
	return func(c *nodeConfig) error {
		if port < 0 || port > types.MaxPort {
			return fmt.Errorf("%w: listen port %d", types.ErrInvalidArgument, port)
		}
		c.config.Identity.ListenPort = port
		return nil
	}
}

// WithLocalAddress 设置本地监听地址
func WithLocalAddress(addr string) Option {
	return func(c *nodeConfig) error {
		if net.ParseIP(addr) == nil {
			return fmt.Errorf("%w: local address %q", types.ErrInvalidArgument, addr)
		}
		c.config.Identity.LocalAddress = addr
		return nil
	}
}

// WithDHT 启用或禁用 DHT 发现
func WithDHT(enabled bool) Option {
	return func(c *nodeConfig) error {
		c.config.DHT.Enabled = enabled
		return nil
	}
}

// WithNAT 启用或禁用全部 NAT 端口映射后端
func WithNAT(enabled bool) Option {
	return func(c *nodeConfig) error {
		c.config.NAT.EnableUPnP = enabled
		c.config.NAT.EnableNATPMP = enabled
		return nil
	}
}

// WithEncryptionPolicy 设置本地加密策略
func WithEncryptionPolicy(p types.EncryptionPolicy) Option {
	return func(c *nodeConfig) error {
		c.config.Security.EncryptionPolicy = p.String()
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(c *nodeConfig) error {
		c.userFxOptions = append(c.userFxOptions, opts...)
		return nil
	}
}

// WithFxLogging 输出 Fx 内部事件日志（调试用）
func WithFxLogging(enabled bool) Option {
	return func(c *nodeConfig) error {
		c.fxLogging = enabled
		return nil
	}
}
