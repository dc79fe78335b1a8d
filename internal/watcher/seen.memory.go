package watcher

import (
	"context"
	"sync"
)

type MemorySeenStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ SeenStore = (*MemorySeenStore)(nil)

func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{seen: make(map[string]struct{})}
}

func (m *MemorySeenStore) Filter(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unseen := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.seen[id]; !ok {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

func (m *MemorySeenStore) Mark(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		m.seen[id] = struct{}{}
	}
	return nil
}
