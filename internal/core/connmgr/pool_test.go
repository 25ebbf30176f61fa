package connmgr

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/internal/core/eventbus"
	"github.com/dep2p/go-btpeer/internal/core/metrics"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var testContent = types.ContentID{0x42}

type mockConn struct {
	peer   *types.Peer
	closed atomic.Bool
	err    error
}

func newMockConn(peer *types.Peer) *mockConn {
	return &mockConn{peer: peer}
}

func (c *mockConn) RemotePeer() *types.Peer { return c.peer }

func (c *mockConn) Close() error {
	c.closed.Store(true)
	return c.err
}

func counterValue(t *testing.T, rec *metrics.Recorder, name string) float64 {
	t.Helper()
	mfs, err := rec.Registry().Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

// addTwoToSamePeer 登记一条主动连接与一条端口未知的被动连接
func addTwoToSamePeer(t *testing.T, pool *Pool, clk *clock.Mock) (*mockConn, *mockConn, *types.Peer) {
	t.Helper()
	outbound := newMockConn(types.NewPeer(net.IPv4(10, 0, 0, 9), 6881))
	_, err := pool.Add(testContent, outbound)
	require.NoError(t, err)

	clk.Add(time.Second)
	inboundPeer := types.NewPeer(net.IPv4(10, 0, 0, 9), types.PortUnknown)
	inbound := newMockConn(inboundPeer)
	_, err = pool.Add(testContent, inbound)
	require.NoError(t, err)
	return outbound, inbound, inboundPeer
}

func TestPool_AddRemove(t *testing.T) {
	pool := NewPool()
	id, err := pool.Add(testContent, newMockConn(types.NewPeer(net.IPv4(1, 2, 3, 4), 6881)))
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, 1, pool.Len())
	require.Len(t, pool.Connections(testContent), 1)

	assert.True(t, pool.Remove(id))
	assert.False(t, pool.Remove(id))
	assert.Empty(t, pool.Connections(testContent))

	_, err = pool.Add(testContent, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPool_MaxConnsPerContent(t *testing.T) {
	pool := NewPool(WithMaxConnsPerContent(1))
	_, err := pool.Add(testContent, newMockConn(types.NewPeer(net.IPv4(1, 2, 3, 4), 1)))
	require.NoError(t, err)
	_, err = pool.Add(testContent, newMockConn(types.NewPeer(net.IPv4(1, 2, 3, 4), 2)))
	assert.ErrorIs(t, err, ErrPoolFull)

	// 上限按内容计算
	_, err = pool.Add(types.ContentID{0x43}, newMockConn(types.NewPeer(net.IPv4(1, 2, 3, 4), 2)))
	assert.NoError(t, err)
}

func TestPool_DuplicateKeepOldest(t *testing.T) {
	clk := clock.NewMock()
	rec := metrics.NewRecorder(nil, clk)
	pool := NewPool(WithClock(clk), WithMetrics(rec))

	outbound, inbound, inboundPeer := addTwoToSamePeer(t, pool, clk)

	// 端口未知时两者不相等
	pool.CheckDuplicateConnections(testContent, inboundPeer)
	assert.Len(t, pool.Connections(testContent), 2)

	inboundPeer.SetPort(6881)
	pool.CheckDuplicateConnections(testContent, inboundPeer)

	conns := pool.Connections(testContent)
	require.Len(t, conns, 1)
	assert.Same(t, outbound.peer, conns[0].Peer)
	assert.False(t, outbound.closed.Load())
	assert.True(t, inbound.closed.Load())
	assert.Equal(t, 1.0, counterValue(t, rec, "btpeer_connmgr_duplicates_closed_total"))
}

func TestPool_DuplicateKeepNewest(t *testing.T) {
	clk := clock.NewMock()
	pool := NewPool(WithClock(clk), WithPolicy(KeepNewest))

	outbound, inbound, inboundPeer := addTwoToSamePeer(t, pool, clk)
	inboundPeer.SetPort(6881)
	pool.CheckDuplicateConnections(testContent, inboundPeer)

	assert.True(t, outbound.closed.Load())
	assert.False(t, inbound.closed.Load())
	assert.Len(t, pool.Connections(testContent), 1)
}

func TestPool_DuplicateByPeerID(t *testing.T) {
	pool := NewPool()
	id := types.PeerID{1, 2, 3}
	a := newMockConn(types.NewPeerWithID(net.IPv4(10, 0, 0, 1), 6881, id))
	b := newMockConn(types.NewPeerWithID(net.IPv4(10, 0, 0, 2), 51413, id))
	_, err := pool.Add(testContent, a)
	require.NoError(t, err)
	_, err = pool.Add(testContent, b)
	require.NoError(t, err)

	pool.CheckDuplicateConnections(testContent, b.peer)
	assert.Len(t, pool.Connections(testContent), 1)
	assert.True(t, b.closed.Load())
}

func TestPool_DuplicateEmitsEvent(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	sub, err := bus.Subscribe(new(types.EvtDuplicateConnectionClosed))
	require.NoError(t, err)
	em, err := bus.Emitter(new(types.EvtDuplicateConnectionClosed))
	require.NoError(t, err)

	clk := clock.NewMock()
	pool := NewPool(WithClock(clk), WithEmitter(em))
	_, _, inboundPeer := addTwoToSamePeer(t, pool, clk)
	inboundPeer.SetPort(6881)
	pool.CheckDuplicateConnections(testContent, inboundPeer)

	select {
	case e := <-sub.Out():
		evt := e.(types.EvtDuplicateConnectionClosed)
		assert.Equal(t, testContent, evt.ContentID)
		assert.Same(t, inboundPeer, evt.Peer)
	case <-time.After(time.Second):
		t.Fatal("未收到重复连接事件")
	}
}

func TestPool_Close(t *testing.T) {
	pool := NewPool()
	cause := errors.New("close failed")
	a := newMockConn(types.NewPeer(net.IPv4(1, 1, 1, 1), 1))
	b := &mockConn{peer: types.NewPeer(net.IPv4(1, 1, 1, 1), 2), err: cause}
	_, _ = pool.Add(testContent, a)
	_, _ = pool.Add(testContent, b)

	err := pool.Close()
	assert.ErrorIs(t, err, cause)
	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
	assert.NoError(t, pool.Close())

	_, err = pool.Add(testContent, a)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, KeepOldest, p)

	p, err = PolicyByName(config.DuplicateKeepNewest)
	require.NoError(t, err)
	assert.Equal(t, config.DuplicateKeepNewest, p.Name())

	_, err = PolicyByName("random")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ConnMgr.DuplicatePolicy = config.DuplicateKeepNewest

	var (
		pool *Pool
		cp   pkgif.ConnectionPool
	)
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		eventbus.Module(),
		Module(),
		fx.Populate(&pool, &cp),
	)
	app.RequireStart()

	assert.Same(t, pool, cp)
	assert.Equal(t, KeepNewest, pool.Policy())

	conn := newMockConn(types.NewPeer(net.IPv4(1, 1, 1, 1), 1))
	_, err := pool.Add(testContent, conn)
	require.NoError(t, err)

	app.RequireStop()
	assert.True(t, conn.closed.Load())
}
