package eventbus

import (
	"errors"
	"reflect"
	"sync"

	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

var (
	// ErrClosed 事件总线或发射器已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("subscribe called with non-pointer type")
)

// DefaultBufferSize 订阅默认缓冲区大小
const DefaultBufferSize = 64

// dropLogEvery 每个订阅每丢弃多少个事件记录一次警告
const dropLogEvery = 100

// ════════════════════════════════════════════════════════════════════════════
// Bus
// ════════════════════════════════════════════════════════════════════════════

// Bus 按事件类型分发的进程内总线
//
// 每种事件类型对应一个 topic；topic 在最后一个订阅和发射器都关闭后回收。
type Bus struct {
	mu     sync.Mutex
	closed bool
	topics map[reflect.Type]*topic
}

var _ pkgif.EventBus = (*Bus)(nil)

// topic 单一事件类型的订阅者集合
//
// emit 持读锁发送，detach 持写锁移除，因此移除返回后不会再向该订阅发送。
type topic struct {
	typ reflect.Type

	mu   sync.RWMutex
	subs []*Subscription

	// emitters 由 Bus.mu 保护
	emitters int
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]*topic)}
}

// eventTypeOf 从 new(T) 形式的参数取得事件类型 T
func eventTypeOf(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// topicLocked 取得或创建 topic，调用方持有 b.mu
func (b *Bus) topicLocked(typ reflect.Type) (*topic, error) {
	if b.closed {
		return nil, ErrClosed
	}
	t, ok := b.topics[typ]
	if !ok {
		t = &topic{typ: typ}
		b.topics[typ] = t
	}
	return t, nil
}

// Subscribe 订阅事件
//
// eventType 为事件类型的指针，例如 new(types.EvtPeerDiscovered)。
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := eventTypeOf(eventType)
	if err != nil {
		return nil, err
	}
	settings := pkgif.SubscriptionSettings{Buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(&settings)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.topicLocked(typ)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{bus: b, topic: t, out: make(chan interface{}, settings.Buffer)}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}) (pkgif.Emitter, error) {
	typ, err := eventTypeOf(eventType)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.topicLocked(typ)
	if err != nil {
		return nil, err
	}
	t.emitters++
	return &Emitter{bus: b, topic: t}, nil
}

// Topics 返回当前存活的事件类型数
func (b *Bus) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// Close 关闭总线并关闭所有订阅
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*Subscription
	for _, t := range b.topics {
		t.mu.RLock()
		subs = append(subs, t.subs...)
		t.mu.RUnlock()
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

// detach 从 topic 移除订阅，并在 topic 空闲时回收
func (b *Bus) detach(sub *Subscription) {
	t := sub.topic
	t.mu.Lock()
	for i, s := range t.subs {
		if s == sub {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	b.reclaim(t)
}

// releaseEmitter 减少发射器计数，并在 topic 空闲时回收
func (b *Bus) releaseEmitter(t *topic) {
	b.mu.Lock()
	t.emitters--
	b.mu.Unlock()
	b.reclaim(t)
}

func (b *Bus) reclaim(t *topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[t.typ] != t || t.emitters > 0 {
		return
	}
	t.mu.RLock()
	idle := len(t.subs) == 0
	t.mu.RUnlock()
	if idle {
		delete(b.topics, t.typ)
	}
}

// publish 非阻塞地投递给所有订阅，缓冲区满的订阅丢弃事件
func (t *topic) publish(event interface{}) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sub := range t.subs {
		select {
		case sub.out <- event:
		default:
			if n := sub.dropped.Add(1); n%dropLogEvery == 1 {
				logger.Warn("订阅者缓冲区已满，事件被丢弃",
					"type", t.typ.String(),
					"dropped", n)
			}
		}
	}
}
