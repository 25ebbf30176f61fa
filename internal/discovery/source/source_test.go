package source

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-btpeer/config"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

func peer(a byte, port int) *types.Peer {
	return types.NewPeer(net.IPv4(10, 0, 0, a), port)
}

// blockingCollector 记录并发调用数，收到 release 后才返回
type blockingCollector struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	release chan struct{}
	peers   []*types.Peer
	err     error
}

func (c *blockingCollector) CollectPeers(ctx context.Context, emit func(*types.Peer)) error {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxSeen.Load()
		if n <= m || c.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-c.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, p := range c.peers {
		emit(p)
	}
	return c.err
}

func waitIdle(t *testing.T, s *Scheduled) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.InFlight() }, time.Second, 5*time.Millisecond)
}

func TestScheduled_UpdateNeverOverlaps(t *testing.T) {
	exec := NewExecutor(4)
	defer exec.Close(context.Background())

	c := &blockingCollector{release: make(chan struct{})}
	s := NewScheduled("test", c, exec)

	assert.False(t, s.Update())
	assert.False(t, s.Update())
	assert.False(t, s.Update())

	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.InFlight())

	close(c.release)
	waitIdle(t, s)
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, int32(1), c.maxSeen.Load())
}

func TestScheduled_DeliversAndDrains(t *testing.T) {
	exec := NewExecutor(1)
	defer exec.Close(context.Background())

	a, b := peer(1, 6881), peer(2, 6881)
	c := &blockingCollector{release: make(chan struct{}), peers: []*types.Peer{a, b}}
	close(c.release)
	s := NewScheduled("test", c, exec)

	s.Update()
	waitIdle(t, s)

	assert.True(t, s.Update())
	assert.Equal(t, []*types.Peer{a, b}, s.GetPeers())
	assert.Empty(t, s.GetPeers())
}

func TestScheduled_ErrorResetsAndRetries(t *testing.T) {
	exec := NewExecutor(1)
	defer exec.Close(context.Background())

	c := &blockingCollector{release: make(chan struct{}), err: errors.New("lookup failed")}
	close(c.release)
	s := NewScheduled("test", c, exec)

	s.Update()
	waitIdle(t, s)

	// 第一次调用只复位，第二次调用提交新的收集
	assert.False(t, s.Update())
	assert.Equal(t, int32(1), c.calls.Load())
	s.Update()
	require.Eventually(t, func() bool { return c.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduled_PanicIsRecovered(t *testing.T) {
	exec := NewExecutor(1)
	defer exec.Close(context.Background())

	var calls atomic.Int32
	s := NewScheduled("panicky", CollectorFunc(func(context.Context, func(*types.Peer)) error {
		calls.Add(1)
		panic("boom")
	}), exec)

	s.Update()
	waitIdle(t, s)
	s.Update()
	s.Update()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	err := s.collect(context.Background())
	assert.ErrorIs(t, err, ErrCollectorPanic)
}

func TestScheduled_BudgetExhausted(t *testing.T) {
	exec := NewExecutor(1)
	defer exec.Close(context.Background())

	blocker := &blockingCollector{release: make(chan struct{})}
	first := NewScheduled("first", blocker, exec)
	first.Update()
	require.Eventually(t, func() bool { return blocker.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	other := &blockingCollector{release: make(chan struct{})}
	second := NewScheduled("second", other, exec)
	second.Update()
	assert.False(t, second.InFlight())
	assert.Equal(t, int32(0), other.calls.Load())

	close(blocker.release)
	waitIdle(t, first)
	close(other.release)
	require.Eventually(t, func() bool {
		second.Update()
		return other.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExecutor(t *testing.T) {
	exec := NewExecutor(1)
	assert.Equal(t, 1, exec.Workers())

	started := make(chan struct{})
	require.True(t, exec.TryGo(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started
	assert.Equal(t, 1, exec.Active())
	assert.False(t, exec.TryGo(func(context.Context) {}))

	require.NoError(t, exec.Close(context.Background()))
	assert.Equal(t, 0, exec.Active())
	assert.False(t, exec.TryGo(func(context.Context) {}))
	assert.NoError(t, exec.Close(context.Background()))
}

func TestExecutor_CloseTimeout(t *testing.T) {
	exec := NewExecutor(1)
	release := make(chan struct{})
	defer close(release)
	require.True(t, exec.TryGo(func(context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, exec.Close(ctx), context.DeadlineExceeded)
}

func TestMemoizedFactory(t *testing.T) {
	exec := NewExecutor(1)
	defer exec.Close(context.Background())

	var created atomic.Int32
	f := NewMemoizedFactory("static", func(types.ContentID) pkgif.PeerSource {
		created.Add(1)
		return NewScheduled("static", NewStaticCollector(), exec)
	})

	a, b := types.ContentID{1}, types.ContentID{2}
	sa := f.PeerSource(a)
	assert.Same(t, sa, f.PeerSource(a))
	assert.NotSame(t, sa, f.PeerSource(b))
	assert.Equal(t, int32(2), created.Load())
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, "static", f.Name())
}

func TestStaticCollector(t *testing.T) {
	orig := peer(1, 6881)
	c := NewStaticCollector(orig)

	var got []*types.Peer
	require.NoError(t, c.CollectPeers(context.Background(), func(p *types.Peer) { got = append(got, p) }))
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(orig))
	assert.NotSame(t, orig, got[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.CollectPeers(ctx, func(*types.Peer) {}), context.Canceled)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Discovery.SourceWorkers = 7

	var exec *Executor
	app := fxtest.New(t, fx.NopLogger, fx.Supply(cfg), Module(), fx.Populate(&exec))
	app.RequireStart()
	assert.Equal(t, 7, exec.Workers())
	app.RequireStop()
	assert.False(t, exec.TryGo(func(context.Context) {}))
}
