package eventbus

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/types"
)

type testEvent struct {
	Value int
}

func receive(t *testing.T, sub pkgif.Subscription) interface{} {
	t.Helper()
	select {
	case evt, ok := <-sub.Out():
		require.True(t, ok, "订阅已关闭")
		return evt
	case <-time.After(time.Second):
		t.Fatal("等待事件超时")
		return nil
	}
}

// ============================================================================
// 基础功能
// ============================================================================

func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(testEvent{Value: 42}))
	assert.Equal(t, testEvent{Value: 42}, receive(t, sub))
}

func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	assert.ErrorIs(t, em.Emit("wrong"), ErrInvalidEventType)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	subs := make([]pkgif.Subscription, 3)
	for i := range subs {
		var err error
		subs[i], err = bus.Subscribe(new(testEvent))
		require.NoError(t, err)
	}

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	require.NoError(t, em.Emit(testEvent{Value: 1}))

	for _, sub := range subs {
		assert.Equal(t, testEvent{Value: 1}, receive(t, sub))
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, em.Emit(testEvent{Value: i}))
	}
	assert.Equal(t, testEvent{Value: 0}, receive(t, sub))
	assert.Equal(t, int64(9), sub.(*Subscription).Dropped())
}

func TestBus_CloseEmitterAndSubscription(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.Out()
	assert.False(t, ok)

	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(testEvent{}), ErrClosed)

	assert.Zero(t, bus.Topics(), "无订阅者和发射器时 topic 被回收")
}

func TestBus_TopicOutlivesEmitterWhileSubscribed(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	require.NoError(t, em.Close())
	assert.Equal(t, 1, bus.Topics())

	em2, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	require.NoError(t, em2.Emit(testEvent{Value: 7}))
	assert.Equal(t, testEvent{Value: 7}, receive(t, sub))
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-sub.Out()
	assert.False(t, ok)

	_, err = bus.Subscribe(new(testEvent))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			em, err := bus.Emitter(new(testEvent))
			if err != nil {
				return
			}
			defer em.Close()
			for j := 0; j < 50; j++ {
				_ = em.Emit(testEvent{Value: j})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sub.Out(), 500)
}

// ============================================================================
// Sink
// ============================================================================

func TestSink_FirePeerDiscovered(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(types.EvtPeerDiscovered))
	require.NoError(t, err)

	sink, err := NewSink(bus)
	require.NoError(t, err)
	defer sink.Close()

	var id types.ContentID
	id[0] = 0x01
	peer := types.NewPeer(net.ParseIP("1.2.3.4"), 6881)

	sink.FirePeerDiscoveredFrom(id, peer, "dht")

	evt, ok := receive(t, sub).(types.EvtPeerDiscovered)
	require.True(t, ok)
	assert.Equal(t, id, evt.ContentID)
	assert.True(t, peer.Equal(evt.Peer))
	assert.Equal(t, "dht", evt.Source)
}

// ============================================================================
// Fx 模块
// ============================================================================

func TestModule(t *testing.T) {
	var sink pkgif.EventSink
	var bus pkgif.EventBus

	app := fxtest.New(t,
		Module(),
		fx.Populate(&sink, &bus),
	)
	app.RequireStart()

	require.NotNil(t, sink)
	require.NotNil(t, bus)

	sub, err := bus.Subscribe(new(types.EvtPeerDiscovered))
	require.NoError(t, err)

	sink.FirePeerDiscovered(types.ContentID{}, types.NewPeer(net.ParseIP("5.6.7.8"), 1))
	_, ok := receive(t, sub).(types.EvtPeerDiscovered)
	assert.True(t, ok)

	app.RequireStop()
}
