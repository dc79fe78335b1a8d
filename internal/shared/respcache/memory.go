package respcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process cache with a periodic sweep.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ Cache = (*Memory)(nil)

func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]Entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if m.stale(entry) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (m *Memory) Set(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{Body: append([]byte(nil), body...), StoredAt: m.now()}
	return nil
}

func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if m.stale(entry) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Start runs Sweep every TTL until Stop is called or ctx is done.
func (m *Memory) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.ttl)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				_, _ = m.Sweep(ctx)
			}
		}
	}()
}

// Stop ends the sweeper started by Start and waits for it to exit.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

func (m *Memory) stale(entry Entry) bool {
	return m.now().Sub(entry.StoredAt) > m.ttl
}
