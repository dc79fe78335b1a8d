// Package securestore keeps the staff session token and user record on the
// terminal. It is the only writer of those blobs; the API client reads and
// deletes them.
package securestore

import (
	"context"
	"sync"
)

// Keys owned by the auth flow.
const (
	TokenKey = "userToken"
	UserKey  = "userData"
)

type Store interface {
	// GetSecureData returns the value and whether it was present.
	GetSecureData(ctx context.Context, key string) (string, bool, error)
	SetSecureData(ctx context.Context, key, value string) error
	// DeleteItem is a no-op for absent keys.
	DeleteItem(ctx context.Context, key string) error
}

// Memory is a process-local Store used in tests and ephemeral runs.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetSecureData(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok, nil
}

func (m *Memory) SetSecureData(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) DeleteItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
