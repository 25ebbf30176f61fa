// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，提供 DefaultXxxConfig 与 Validate
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.DHT.Port = 6882
//	cfg.Security.EncryptionPolicy = "require-encrypted"
//
//	// 从文件加载
//	cfg, err := config.LoadFile("btpeer.json")
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 是 btpeer 的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 本地节点身份与监听地址
//   - Discovery: 注册表轮询与发现源调度
//   - DHT: Mainline DHT 查询与公告
//   - NAT: 端口映射（UPnP/NAT-PMP）
//   - Security: 传输加密策略
//   - Extension: 扩展握手
//   - ConnMgr: 重复连接处理
//   - Metrics: prometheus 指标
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Discovery 节点发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// DHT DHT 配置
	DHT DHTConfig `json:"dht"`

	// NAT NAT 端口映射配置
	NAT NATConfig `json:"nat"`

	// Security 安全传输配置
	Security SecurityConfig `json:"security"`

	// Extension 扩展握手配置
	Extension ExtensionConfig `json:"extension"`

	// ConnMgr 连接管理配置
	ConnMgr ConnManagerConfig `json:"conn_mgr"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Discovery: DefaultDiscoveryConfig(),
		DHT:       DefaultDHTConfig(),
		NAT:       DefaultNATConfig(),
		Security:  DefaultSecurityConfig(),
		Extension: DefaultExtensionConfig(),
		ConnMgr:   DefaultConnManagerConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，返回第一个发现的错误。
// 所有配置错误都包装 types.ErrInvalidArgument。
func (c *Config) Validate() error {
	validators := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"identity", c.Identity},
		{"discovery", c.Discovery},
		{"dht", c.DHT},
		{"nat", c.NAT},
		{"security", c.Security},
		{"extension", c.Extension},
		{"conn_mgr", c.ConnMgr},
	}
	for _, item := range validators {
		if err := item.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", item.name, err)
		}
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	out := *c
	out.DHT.BootstrapNodes = append([]string(nil), c.DHT.BootstrapNodes...)
	out.Extension.Extensions = make(map[string]int, len(c.Extension.Extensions))
	for k, v := range c.Extension.Extensions {
		out.Extension.Extensions[k] = v
	}
	return &out
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "identity": {"listen_port": 51413},
//	  "dht": {"bootstrap_nodes": ["router.bittorrent.com:6881"]},
//	  "discovery": {"poll_interval": "10s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载并校验配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
