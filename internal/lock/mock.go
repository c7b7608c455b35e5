package lock

import (
	"context"
	"sync"
	"time"
)

// MockStore is a test implementation of the Store interface.
type MockStore struct {
	mu sync.Mutex

	// Configurable return values
	AcquireError error
	ReleaseError error
	StatusResult bool
	StatusError  error
	PingError    error

	// Call tracking
	AcquireCalls []AcquireCall
	ReleaseCalls []ReleaseCall
	StatusCalls  []string
}

// AcquireCall records an Acquire call.
type AcquireCall struct {
	TableID  string
	HolderID string
	TTL      time.Duration
}

// ReleaseCall records a Release call.
type ReleaseCall struct {
	TableID  string
	HolderID string
}

// NewMockStore creates a new MockStore with default success behavior.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Acquire implements Store.Acquire.
func (m *MockStore) Acquire(ctx context.Context, tableID, holderID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AcquireCalls = append(m.AcquireCalls, AcquireCall{TableID: tableID, HolderID: holderID, TTL: ttl})
	return m.AcquireError
}

// Release implements Store.Release.
func (m *MockStore) Release(ctx context.Context, tableID, holderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReleaseCalls = append(m.ReleaseCalls, ReleaseCall{TableID: tableID, HolderID: holderID})
	return m.ReleaseError
}

// Status implements Store.Status.
func (m *MockStore) Status(ctx context.Context, tableID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusCalls = append(m.StatusCalls, tableID)
	if m.StatusError != nil {
		return false, m.StatusError
	}
	return m.StatusResult, nil
}

// Ping implements Pinger.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingError
}

// Close implements Store.Close.
func (m *MockStore) Close() error {
	return nil
}
