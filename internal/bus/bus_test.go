package bus_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Hara602/downloadSentry/internal/bus"
	"github.com/Hara602/downloadSentry/internal/model"
)

func rec(path string) model.QuarantineRecord {
	return model.QuarantineRecord{OriginalPath: path, Outcome: model.OutcomeQuarantined}
}

func drain(sub *bus.Subscriber) []string {
	var out []string
	for {
		select {
		case n, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, n.Path)
		default:
			return out
		}
	}
}

func TestPublish_NoSubscriberDrops(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	b.Publish(rec("/dl/early.txt"))

	sub := bus.NewSubscriber(4)
	assert.Nil(t, b.SubscribeExternal(sub))
	b.Publish(rec("/dl/late.txt"))

	// 晚到的订阅者看不到历史事件
	assert.Equal(t, []string{"/dl/late.txt"}, drain(sub))
}

func TestPublish_FIFO(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	sub := bus.NewSubscriber(100)
	b.SubscribeExternal(sub)

	var want []string
	for i := 0; i < 50; i++ {
		p := fmt.Sprintf("/dl/%02d", i)
		want = append(want, p)
		b.Publish(rec(p))
	}
	assert.Equal(t, want, drain(sub))
}

func TestSubscribeExternal_Replaces(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	old := bus.NewSubscriber(4)
	b.SubscribeExternal(old)
	b.Publish(rec("/dl/1"))

	fresh := bus.NewSubscriber(4)
	prev := b.SubscribeExternal(fresh)
	assert.Same(t, old, prev)

	b.Publish(rec("/dl/2"))
	b.Publish(rec("/dl/3"))

	// old keeps what it got before replacement, then its channel is closed
	assert.Equal(t, []string{"/dl/1"}, drain(old))
	_, ok := <-old.Events()
	assert.False(t, ok)
	select {
	case <-old.Done():
	default:
		t.Fatal("old subscriber not marked done")
	}

	assert.Equal(t, []string{"/dl/2", "/dl/3"}, drain(fresh))
}

func TestSubscribeExternal_SameHandle(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	sub := bus.NewSubscriber(4)
	b.SubscribeExternal(sub)
	assert.Nil(t, b.SubscribeExternal(sub))

	b.Publish(rec("/dl/a"))
	assert.Equal(t, []string{"/dl/a"}, drain(sub))
}

func TestSubscribeExternal_DetachedHandleIgnored(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	sub := bus.NewSubscriber(4)
	b.SubscribeExternal(sub)
	b.UnsubscribeExternal()

	b.SubscribeExternal(sub)
	assert.NotPanics(t, func() { b.Publish(rec("/dl/a")) })
}

func TestUnsubscribeExternal(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	b.UnsubscribeExternal() // no subscriber: no-op

	sub := bus.NewSubscriber(4)
	b.SubscribeExternal(sub)
	b.UnsubscribeExternal()
	b.UnsubscribeExternal()

	b.Publish(rec("/dl/after"))
	assert.Empty(t, drain(sub))
}

func TestPublish_FullBufferDrops(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	sub := bus.NewSubscriber(2)
	b.SubscribeExternal(sub)

	for _, p := range []string{"/dl/1", "/dl/2", "/dl/3"} {
		b.Publish(rec(p))
	}
	assert.Equal(t, []string{"/dl/1", "/dl/2"}, drain(sub))
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				b.Publish(rec(fmt.Sprintf("/dl/%d", i)))
			}
		}
	}()

	for i := 0; i < 200; i++ {
		sub := bus.NewSubscriber(8)
		b.SubscribeExternal(sub)
		if i%3 == 0 {
			b.UnsubscribeExternal()
		}
	}
	close(stop)
	wg.Wait()
}

func TestListen_ReceivesRecords(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	sub := b.Listen()
	defer b.Unlisten(sub)

	want := rec("/dl/report.pdf")
	b.Publish(want)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, bus.FileQuarantined, ev.Type)
		got, ok := ev.Value.(model.QuarantineRecord)
		require.True(t, ok)
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("internal listener received nothing")
	}
}
