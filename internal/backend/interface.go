package backend

import (
	"context"

	"dompet/internal/store"
)

// Store is everything the binaries need from a record store backend.
type Store interface {
	store.ExpenseStore
	store.ExpenseGetter
	store.CategoryReader
	store.Notifier
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and its lifecycle hooks.
type BackendResult struct {
	Store Store
	// Ping checks the backend is reachable; nil when there is nothing to check.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects and locates the record store.
type Config struct {
	Type BackendType

	SQLiteDBPath string
	// DataDirectory seeds the memory store's categories.
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}
