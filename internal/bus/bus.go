// Package bus is an in-process publish/subscribe mechanism that lets any
// surface announce a change without holding references to the others.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Topic string

// TopicPointsUpdated carries the new point total after it changes.
const TopicPointsUpdated Topic = "user_points_updated"

type Handler func(Payload)

// Observer is told about every publish; used for metrics.
type Observer interface {
	Published(topic Topic, delivered int)
}

type subscription struct {
	handler Handler
	active  atomic.Bool
}

// Bus delivers synchronously, in registration order, on the publisher's
// goroutine. Nothing is queued for subscribers that arrive later.
type Bus struct {
	logger   *slog.Logger
	observer Observer

	mu   sync.Mutex
	subs map[Topic][]*subscription
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[Topic][]*subscription),
	}
}

func (b *Bus) SetObserver(o Observer) {
	b.mu.Lock()
	b.observer = o
	b.mu.Unlock()
}

// Subscribe registers h on topic. The returned func removes exactly this
// registration and may be called any number of times.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	sub := &subscription{handler: h}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.remove(topic, sub)
		})
	}
}

func (b *Bus) remove(topic Topic, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s == sub {
			// Copy so that an in-flight Publish keeps iterating its own snapshot.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			subs = next
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, topic)
		return
	}
	b.subs[topic] = subs
}

// Publish hands p to every handler subscribed to topic at the moment of the
// call. Handlers added during delivery wait for the next publish; handlers
// removed during delivery are skipped.
func (b *Bus) Publish(topic Topic, p Payload) {
	b.mu.Lock()
	snapshot := b.subs[topic]
	observer := b.observer
	b.mu.Unlock()

	delivered := 0
	for _, s := range snapshot {
		if !s.active.Load() {
			continue
		}
		b.deliver(topic, s.handler, p)
		delivered++
	}

	if observer != nil {
		observer.Published(topic, delivered)
	}
}

func (b *Bus) deliver(topic Topic, h Handler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked", "topic", string(topic), "error", fmt.Sprint(r))
		}
	}()
	h(p)
}

// Len reports how many handlers are subscribed to topic.
func (b *Bus) Len(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
