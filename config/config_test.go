package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btpeer/pkg/types"
)

// TestNewConfig 默认配置有效
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Second, cfg.Discovery.PollInterval.Std())
	assert.Equal(t, 50, cfg.DHT.MaxPeersPerLookup)
	assert.Equal(t, DuplicateKeepOldest, cfg.ConnMgr.DuplicatePolicy)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"监听端口越界", func(c *Config) { c.Identity.ListenPort = 70000 }},
		{"非法本地地址", func(c *Config) { c.Identity.LocalAddress = "not-an-ip" }},
		{"非法 PeerID", func(c *Config) { c.Identity.PeerID = "abcd" }},
		{"轮询间隔为零", func(c *Config) { c.Discovery.PollInterval = 0 }},
		{"DHT 端口越界", func(c *Config) { c.DHT.Port = -1 }},
		{"引导节点缺端口", func(c *Config) { c.DHT.BootstrapNodes = []string{"router.bittorrent.com"} }},
		{"查询上限为零", func(c *Config) { c.DHT.MaxPeersPerLookup = 0 }},
		{"续期间隔超过租期", func(c *Config) { c.NAT.RenewalInterval = c.NAT.MappingDuration }},
		{"未知加密策略", func(c *Config) { c.Security.EncryptionPolicy = "rot13" }},
		{"不支持的算法", func(c *Config) { c.Security.CipherAlgorithm = "aes" }},
		{"扩展 ID 为零", func(c *Config) { c.Extension.Extensions["ut_pex"] = 0 }},
		{"扩展 ID 重复", func(c *Config) { c.Extension.Extensions["ut_holepunch"] = 1 }},
		{"未知重复策略", func(c *Config) { c.ConnMgr.DuplicatePolicy = "random" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestConfig_DisabledSectionsSkipValidation(t *testing.T) {
	cfg := NewConfig()
	cfg.DHT.Enabled = false
	cfg.DHT.MaxPeersPerLookup = 0
	cfg.NAT.EnableUPnP = false
	cfg.NAT.EnableNATPMP = false
	cfg.NAT.Timeout = 0
	assert.NoError(t, cfg.Validate())
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"identity": {"listen_port": 51413},
		"discovery": {"poll_interval": "10s"},
		"dht": {"bootstrap_nodes": ["127.0.0.1:6881"]},
		"security": {"encryption_policy": "require-encrypted"}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 51413, cfg.Identity.ListenPort)
	assert.Equal(t, 10*time.Second, cfg.Discovery.PollInterval.Std())
	assert.Equal(t, []string{"127.0.0.1:6881"}, cfg.DHT.BootstrapNodes)

	policy, err := cfg.Security.Policy()
	require.NoError(t, err)
	assert.Equal(t, types.RequireEncrypted, policy)

	// 未出现的字段保留默认值
	assert.Equal(t, 50, cfg.DHT.MaxPeersPerLookup)

	_, err = FromJSON([]byte(`{"discovery": {"poll_interval": "soon"}}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	out, err := NewConfig().ToJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, out, 0o600))

	cfg, err := LoadFile(good)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().DHT.BootstrapNodes, cfg.DHT.BootstrapNodes)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"identity": {"listen_port": -5}}`), 0o600))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfig_Clone(t *testing.T) {
	cfg := NewConfig()
	c := cfg.Clone()
	c.Extension.Extensions["ut_holepunch"] = 4
	c.DHT.BootstrapNodes[0] = "changed:1"

	_, ok := cfg.Extension.Extensions["ut_holepunch"]
	assert.False(t, ok)
	assert.NotEqual(t, "changed:1", cfg.DHT.BootstrapNodes[0])
}

func TestIdentityConfig_ResolvePeerID(t *testing.T) {
	cfg := DefaultIdentityConfig()
	id, err := cfg.ResolvePeerID()
	require.NoError(t, err)
	assert.Equal(t, DefaultPeerIDPrefix, string(id[:len(DefaultPeerIDPrefix)]))

	cfg.PeerID = "0102030405060708090a0b0c0d0e0f1011121314"
	id, err = cfg.ResolvePeerID()
	require.NoError(t, err)
	assert.Equal(t, cfg.PeerID, id.String())
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Std())

	out, err := Duration(5 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5s"`, string(out))
}
