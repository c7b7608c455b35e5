package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps table locks in process memory. A single mutex guards the
// whole map so every check-then-write is atomic.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]Lock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		now:   time.Now,
		locks: make(map[string]Lock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire implements Store.Acquire. An expired record is overwritten.
func (m *MemoryStore) Acquire(ctx context.Context, tableID, holderID string, ttl time.Duration) error {
	if err := validateIDs(tableID, holderID); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidArgument
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.locks[tableID]; ok && existing.Active(now) {
		return ErrConflict
	}

	m.locks[tableID] = Lock{
		TableID:   tableID,
		HolderID:  holderID,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// Release implements Store.Release. An expired record is removed before
// ErrNotFound is returned; a record owned by someone else is left untouched.
func (m *MemoryStore) Release(ctx context.Context, tableID, holderID string) error {
	if err := validateIDs(tableID, holderID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[tableID]
	if !ok {
		return ErrNotFound
	}
	if !existing.Active(m.now()) {
		delete(m.locks, tableID)
		return ErrNotFound
	}
	if existing.HolderID != holderID {
		return ErrForbidden
	}

	delete(m.locks, tableID)
	return nil
}

// Status implements Store.Status. Observing an expired record deletes it.
func (m *MemoryStore) Status(ctx context.Context, tableID string) (bool, error) {
	if err := validateIDs(tableID); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[tableID]
	if !ok {
		return false, nil
	}
	if !existing.Active(m.now()) {
		delete(m.locks, tableID)
		return false, nil
	}
	return true, nil
}

// Get returns the active lock for tableID, if any.
func (m *MemoryStore) Get(tableID string) (Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[tableID]
	if !ok || !existing.Active(m.now()) {
		return Lock{}, false
	}
	return existing, true
}

// Sweep removes every expired record and returns how many were removed.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for tableID, l := range m.locks {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !l.Active(now) {
			delete(m.locks, tableID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records held, including expired ones not yet reclaimed.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Close implements Store.Close.
func (m *MemoryStore) Close() error {
	return nil
}
