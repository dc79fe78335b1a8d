// Package events is the in-process signal bus between the API client and
// whatever presents state to staff (console, UI shell).
package events

import (
	"sync"
)

// Topic names a signal. Values match the names subscribers used historically.
type Topic string

const (
	// TopicSessionExpired carries no payload.
	TopicSessionExpired Topic = "sessionExpired"
	// TopicShowToast carries a Toast.
	TopicShowToast Topic = "showToast"
	// TopicNewOrders carries a []string of order IDs.
	TopicNewOrders Topic = "newOrders"
)

type ToastType string

const (
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
)

type Toast struct {
	Type     ToastType `json:"type"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
}

type Handler func(payload any)

// Bus fans a signal out to every subscriber of its topic.
// Implementations must be safe for concurrent use.
type Bus interface {
	// Subscribe registers fn and returns a func that removes it.
	Subscribe(topic Topic, fn Handler) (unsubscribe func())
	// Emit calls subscribers synchronously in subscription order.
	Emit(topic Topic, payload any)
	HasSubscribers(topic Topic) bool
}

type subscription struct {
	id uint64
	fn Handler
}

type bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
}

var _ Bus = (*bus)(nil)

func NewBus() Bus {
	return &bus{subs: make(map[Topic][]subscription)}
}

func (b *bus) Subscribe(topic Topic, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			current := b.subs[topic]
			for i, sub := range current {
				if sub.id == id {
					b.subs[topic] = append(current[:i:i], current[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

func (b *bus) Emit(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, sub := range b.subs[topic] {
		handlers = append(handlers, sub.fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload)
	}
}

func (b *bus) HasSubscribers(topic Topic) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic]) > 0
}
