package backend

import (
	"context"

	"compras/internal/amqp"
	"compras/internal/docstore"
	"compras/internal/docstore/sqlite"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the optional pieces the sqlite
// backend brings along. SQLite and AMQP are nil for the memory backend.
type BackendResult struct {
	Store   docstore.Store
	SQLite  *sqlite.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Months lists the months that have a stored document.
func (r *BackendResult) Months(ctx context.Context) ([]string, error) {
	switch s := r.Store.(type) {
	case interface {
		Months(context.Context) ([]string, error)
	}:
		return s.Months(ctx)
	case interface{ Months() []string }:
		return s.Months(), nil
	}
	return nil, nil
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	// AMQPQueue is empty for server instances, which listen on an
	// exclusive queue of their own.
	AMQPQueue string

	// Memory backend specific
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

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
