package mocks

import (
	"context"
	"sync"

	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
)

// MockKV is an in-memory KV whose operations can be forced to fail.
type MockKV struct {
	mu     sync.Mutex
	values map[string]string

	// For tracking calls in tests
	SetCalls    []SetCall
	DeleteCalls []string

	GetErr    error
	SetErr    error
	DeleteErr error
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key   string
	Value string
}

// NewMockKV creates a MockKV pre-populated with values
func NewMockKV(values map[string]string) *MockKV {
	m := &MockKV{values: make(map[string]string)}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	return nil
}

func (m *MockKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.values, key)
	return nil
}

// Value returns the raw stored value, bypassing GetErr
func (m *MockKV) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// SetFailing toggles the Set error under the lock
func (m *MockKV) SetFailing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetErr = err
}
