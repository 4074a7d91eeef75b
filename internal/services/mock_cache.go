package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCache is an in-memory Cache with injectable failures.
type MockCache struct {
	PingFunc func(ctx context.Context) error
	SetFunc  func(ctx context.Context, key string, value any, expiration time.Duration) error
	GetFunc  func(ctx context.Context, key string) (string, error)

	// Track calls for testing
	SetCalls []SetCall
	GetCalls []string
	DelCalls [][]string

	data map[string]string
	mu   sync.Mutex
}

type SetCall struct {
	Key        string
	Value      any
	Expiration time.Duration
}

var _ Cache = (*MockCache)(nil)

// NewMockCache creates a new mock cache
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]string)}
}

func (m *MockCache) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, Expiration: expiration})
	fn := m.SetFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, key, value, expiration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, key)
	fn := m.GetFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DelCalls = append(m.DelCalls, keys)
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MockCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCache) Close() error { return nil }

func (m *MockCache) WaitForConnection(ctx context.Context) error {
	return m.Ping(ctx)
}

// SetPingError sets up the mock to return an error on Ping
func (m *MockCache) SetPingError(err error) {
	m.PingFunc = func(ctx context.Context) error {
		return err
	}
}
