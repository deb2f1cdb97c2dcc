// ABOUTME: In-memory KVStore implementation for tests and the memory driver
// ABOUTME: Records every operation and can inject failures per operation

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Op names recorded by MockStore
const (
	OpGet    = "get"
	OpSet    = "set"
	OpRemove = "remove"
	OpKeys   = "keys"
)

// Call is one recorded MockStore operation.
type Call struct {
	Op  string
	Key string
}

// MockStore is an in-memory KVStore implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	entries map[string]string // keyed by entry key
	calls   []Call
	fail    map[string]error // keyed by op
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		entries: make(map[string]string),
		fail:    make(map[string]error),
	}
}

// Get retrieves the value under key.
func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpGet, Key: key})
	if err := m.fail[OpGet]; err != nil {
		return "", err
	}

	v, ok := m.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpSet, Key: key})
	if err := m.fail[OpSet]; err != nil {
		return err
	}

	m.entries[key] = value
	return nil
}

// Remove deletes the entry under key.
func (m *MockStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpRemove, Key: key})
	if err := m.fail[OpRemove]; err != nil {
		return err
	}

	delete(m.entries, key)
	return nil
}

// Keys lists keys with the given prefix, sorted.
func (m *MockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpKeys, Key: prefix})
	if err := m.fail[OpKeys]; err != nil {
		return nil, err
	}

	var keys []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Seed writes an entry directly, bypassing the call log and failures.
func (m *MockStore) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Entry returns the raw entry under key without recording a call.
func (m *MockStore) Entry(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Len returns the number of stored entries.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Calls returns a copy of the recorded operations.
func (m *MockStore) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// ResetCalls clears the recorded operations.
func (m *MockStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// FailWith makes every subsequent op return err. A nil err clears the failure.
func (m *MockStore) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}
