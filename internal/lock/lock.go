package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidArgument is returned when a table id, holder id or TTL is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when an active lock already exists for the table.
	ErrConflict = errors.New("table is already locked")
	// ErrNotFound is returned when there is no active lock to release.
	ErrNotFound = errors.New("no active lock")
	// ErrForbidden is returned when a holder tries to release a lock it does not own.
	ErrForbidden = errors.New("lock is held by another holder")
)

// Store defines the interface for table locking.
type Store interface {
	// Acquire takes an exclusive lock on tableID for holderID that expires after ttl.
	// Returns ErrConflict if an active lock exists, whoever holds it.
	Acquire(ctx context.Context, tableID, holderID string, ttl time.Duration) error

	// Release removes the lock on tableID.
	// Returns ErrNotFound if no active lock exists and ErrForbidden if holderID
	// does not own it.
	Release(ctx context.Context, tableID, holderID string) error

	// Status reports whether tableID currently has an active lock.
	Status(ctx context.Context, tableID string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lock represents an active table lock.
type Lock struct {
	TableID   string
	HolderID  string
	ExpiresAt time.Time
}

// Active reports whether the lock is still valid at now.
func (l Lock) Active(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return ErrInvalidArgument
		}
	}
	return nil
}
