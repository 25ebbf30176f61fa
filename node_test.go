package btpeer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/torrents"
	"github.com/dep2p/go-btpeer/internal/discovery/source"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var testContent = types.ContentID{0x42}

// offlineOptions 测试节点不访问网络
func offlineOptions(port int) []Option {
	return []Option{
		WithListenPort(port),
		WithDHT(false),
		WithNAT(false),
	}
}

func startNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	node, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Stop(context.Background()) })
	return node
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

func TestNode_Lifecycle(t *testing.T) {
	node, err := New(context.Background(), offlineOptions(6881)...)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, node.State())

	require.NoError(t, node.Start(context.Background()))
	assert.True(t, node.IsRunning())
	assert.ErrorIs(t, node.Start(context.Background()), ErrAlreadyStarted)

	assert.Equal(t, 6881, node.LocalPeer().Port)
	assert.False(t, node.PeerID().IsEmpty())
	assert.NotNil(t, node.MetricsRegistry())

	require.NoError(t, node.Stop(context.Background()))
	assert.Equal(t, StateStopped, node.State())
	assert.ErrorIs(t, node.Start(context.Background()), ErrNodeClosed)
	assert.NoError(t, node.Close())
}

func TestNode_InvalidOptions(t *testing.T) {
	_, err := New(context.Background(), WithListenPort(70000))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = New(context.Background(), WithLocalAddress("not-an-ip"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = New(context.Background(), WithConfig(nil))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	cfg := config.NewConfig()
	cfg.Discovery.PollInterval = 0
	_, err = New(context.Background(), WithConfig(cfg))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestNode_MetricsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false
	node := startNode(t, append([]Option{WithConfig(cfg)}, offlineOptions(6881)...)...)
	assert.Nil(t, node.MetricsRegistry())
	assert.Zero(t, node.DiscoveryRate())
}

// ════════════════════════════════════════════════════════════════════════════
//                              发现
// ════════════════════════════════════════════════════════════════════════════

func TestNode_DiscoveryThroughFactory(t *testing.T) {
	exec := source.NewExecutor(1)
	defer exec.Close(context.Background())

	a, err := types.ParsePeer("1.2.3.4:6881")
	require.NoError(t, err)
	b, err := types.ParsePeer("5.6.7.8:6881")
	require.NoError(t, err)

	factory := source.NewMemoizedFactory("static", func(types.ContentID) pkgif.PeerSource {
		return source.NewScheduled("static", source.NewStaticCollector(a, b), exec)
	})
	node := startNode(t, append(offlineOptions(6999), WithPeerSourceFactory(factory))...)
	require.NoError(t, node.RegisterContent(testContent, torrents.State{Active: true}))

	sub, err := node.EventBus().Subscribe(new(types.EvtPeerDiscovered))
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool {
		return node.PollOnce(context.Background()).Peers > 0
	}, time.Second, 5*time.Millisecond)

	var got []types.EvtPeerDiscovered
	for len(got) < 2 {
		select {
		case ev := <-sub.Out():
			got = append(got, ev.(types.EvtPeerDiscovered))
		case <-time.After(time.Second):
			t.Fatalf("只收到 %d 个发现事件", len(got))
		}
	}
	assert.True(t, got[0].Peer.Equal(a))
	assert.True(t, got[1].Peer.Equal(b))
	assert.Equal(t, "static", got[0].Source)
}

func TestNode_ExternalTorrentRegistry(t *testing.T) {
	reg := torrents.NewRegistry()
	require.NoError(t, reg.Register(testContent, torrents.State{Active: true}))

	node := startNode(t, append(offlineOptions(6881), WithTorrentRegistry(&wrappedRegistry{reg}))...)
	assert.True(t, node.Torrents().IsSupportedAndActive(testContent))
	assert.ErrorIs(t, node.RegisterContent(types.ContentID{1}, torrents.State{}), types.ErrInvalidArgument)
}

// wrappedRegistry 非内置类型的 TorrentRegistry
type wrappedRegistry struct {
	pkgif.TorrentRegistry
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接协商
// ════════════════════════════════════════════════════════════════════════════

func negotiatePair(t *testing.T, a, b *Node, reqA, reqB NegotiateRequest) (*PeerConn, *PeerConn, error, error) {
	t.Helper()
	ca, cb := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		pc  *PeerConn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pc, err := b.Negotiate(ctx, cb, reqB)
		ch <- result{pc, err}
	}()
	pcA, errA := a.Negotiate(ctx, ca, reqA)
	rb := <-ch
	return pcA, rb.pc, errA, rb.err
}

func TestNode_Negotiate(t *testing.T) {
	a := startNode(t, offlineOptions(6881)...)
	b := startNode(t, offlineOptions(6882)...)
	for _, n := range []*Node{a, b} {
		require.NoError(t, n.RegisterContent(testContent, torrents.State{Active: true}))
	}

	secret := []byte("shared secret")
	remoteOfB := types.NewPeer(net.IPv4(10, 0, 0, 2), 6882)
	remoteOfA := types.NewPeer(net.IPv4(10, 0, 0, 1), types.PortUnknown)

	pcA, pcB, errA, errB := negotiatePair(t, a, b,
		NegotiateRequest{ContentID: testContent, Remote: remoteOfB, RemotePolicy: types.PreferEncrypted, Secret: secret, Initiator: true},
		NegotiateRequest{ContentID: testContent, Remote: remoteOfA, RemotePolicy: types.PreferEncrypted, Secret: secret},
	)
	require.NoError(t, errA)
	require.NoError(t, errB)
	defer pcA.Close()
	defer pcB.Close()

	assert.True(t, pcA.Encrypted())
	assert.True(t, pcB.Encrypted())
	require.NotNil(t, pcA.Extended)
	require.NotNil(t, pcB.Extended)
	assert.Equal(t, 6882, pcA.Extended.Port)

	// 入站连接的端口由扩展握手补全
	assert.Equal(t, 6881, pcB.RemotePeer().Port())
	assert.Equal(t, a.PeerID(), pcB.Remote.PeerID)
	assert.Equal(t, 1, a.Pool().Len())
	assert.Equal(t, 1, b.Pool().Len())

	go func() { _, _ = pcA.Write([]byte("hello")) }()
	buf := make([]byte, 5)
	_, err := io.ReadFull(pcB, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestNode_NegotiateFailures(t *testing.T) {
	a := startNode(t, offlineOptions(6881)...)
	remote := types.NewPeer(net.IPv4(10, 0, 0, 2), 6882)

	c1, c2 := net.Pipe()
	defer c2.Close()
	_, err := a.Negotiate(context.Background(), c1, NegotiateRequest{ContentID: testContent, Remote: remote})
	assert.ErrorIs(t, err, ErrUnknownContent)

	require.NoError(t, a.RegisterContent(testContent, torrents.State{Active: true}))

	c3, c4 := net.Pipe()
	defer c4.Close()
	_, err = a.Negotiate(context.Background(), c3, NegotiateRequest{ContentID: testContent})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	cfg := config.NewConfig()
	cfg.Security.EncryptionPolicy = types.RequireEncrypted.String()
	strict := startNode(t, append([]Option{WithConfig(cfg)}, offlineOptions(6883)...)...)
	require.NoError(t, strict.RegisterContent(testContent, torrents.State{Active: true}))

	c5, c6 := net.Pipe()
	defer c6.Close()
	_, err = strict.Negotiate(context.Background(), c5, NegotiateRequest{
		ContentID:    testContent,
		Remote:       remote,
		RemotePolicy: types.RequirePlaintext,
	})
	assert.ErrorIs(t, err, types.ErrIncompatiblePolicy)
	assert.Zero(t, strict.Pool().Len())
}

func TestNode_NegotiateNotStarted(t *testing.T) {
	node, err := New(context.Background(), offlineOptions(6881)...)
	require.NoError(t, err)

	c1, c2 := net.Pipe()
	defer c2.Close()
	_, err = node.Negotiate(context.Background(), c1, NegotiateRequest{ContentID: testContent})
	assert.ErrorIs(t, err, ErrNotStarted)
}
