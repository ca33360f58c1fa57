package bus

import (
	"sync"

	"github.com/wagoodman/go-partybus"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

// FileQuarantined is the internal event type; Value carries a model.QuarantineRecord.
const FileQuarantined partybus.EventType = "file-quarantined"

type Event = partybus.Event
type Subscription = partybus.Subscription

// Subscriber 外部订阅者句柄 (通常是 UI), 同一时刻最多一个
type Subscriber struct {
	ch       chan model.Notice
	done     chan struct{}
	detached bool // guarded by Bus.mu
}

func NewSubscriber(buffer int) *Subscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscriber{
		ch:   make(chan model.Notice, buffer),
		done: make(chan struct{}),
	}
}

// Events is closed once the subscriber is detached.
func (s *Subscriber) Events() <-chan model.Notice { return s.ch }

// Done is closed once the subscriber is detached.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Bus 解耦 watcher/隔离流水线与消费者
type Bus struct {
	mu       sync.Mutex
	external *Subscriber
	internal *partybus.Bus
	log      *zap.Logger
}

func New(log *zap.Logger) *Bus {
	return &Bus{
		internal: partybus.NewBus(),
		log:      sysutil.OrNop(log),
	}
}

// SubscribeExternal installs sub as the only external subscriber and returns the
// previous one, already detached. Re-subscribing the current handle is a no-op.
func (b *Bus) SubscribeExternal(sub *Subscriber) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.external
	if prev == sub {
		return nil
	}
	if prev != nil {
		b.detach(prev)
	}
	if sub != nil && sub.detached {
		// 已经被拆除的句柄不能复用
		b.external = nil
		return prev
	}
	b.external = sub
	b.log.Debug("External subscriber attached")
	return prev
}

// UnsubscribeExternal detaches the current external subscriber, if any.
func (b *Bus) UnsubscribeExternal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.external != nil {
		b.detach(b.external)
		b.external = nil
		b.log.Debug("External subscriber detached")
	}
}

func (b *Bus) detach(s *Subscriber) {
	if s.detached {
		return
	}
	s.detached = true
	close(s.done)
	close(s.ch)
}

// Publish delivers a Notice for rec to the external subscriber and the record
// itself to internal listeners. Without a subscriber, or with a full buffer,
// the notice is dropped.
func (b *Bus) Publish(rec model.QuarantineRecord) {
	b.mu.Lock()
	if sub := b.external; sub != nil {
		select {
		case sub.ch <- model.Notice{Path: rec.OriginalPath}:
		default:
			b.log.Warn("External subscriber is full, dropping notice", zap.String("path", rec.OriginalPath))
		}
	}
	b.mu.Unlock()

	b.internal.Publish(partybus.Event{
		Type:  FileQuarantined,
		Value: rec,
	})
}

// Listen registers an internal listener.
func (b *Bus) Listen() *Subscription {
	return b.internal.Subscribe()
}

func (b *Bus) Unlisten(sub *Subscription) error {
	return b.internal.Unsubscribe(sub)
}
