// Package factory provides functions for creating storage backends based on configuration.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/storage/sqlstore"
	"github.com/rulebook-dev/rulebook/internal/telemetry"
)

// Backend names accepted by New.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendSQLite

// BackendFactory is a function that creates a storage backend
type BackendFactory func(ctx context.Context, path string, opts Options) (storage.Storage, error)

// backendRegistry holds registered backend factories
var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures how the storage backend is opened
type Options struct {
	// MySQL locates the server for the mysql backend (MySQL, MariaDB or a
	// dolt sql-server). Ignored by other backends.
	MySQL sqlstore.MySQLConfig

	// Instrument wraps the store with OpenTelemetry spans and metrics.
	// Has no effect while telemetry is disabled.
	Instrument bool
}

// New creates a storage backend based on the backend type.
// For SQLite, path is the database file.
func New(ctx context.Context, backend, path string) (storage.Storage, error) {
	return NewWithOptions(ctx, backend, path, Options{})
}

// NewWithOptions creates a storage backend with the specified options.
func NewWithOptions(ctx context.Context, backend, path string, opts Options) (storage.Storage, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = DefaultBackend
	}
	factory, ok := backendRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, strings.Join(Backends(), ", "))
	}
	store, err := factory(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if opts.Instrument {
		return telemetry.WrapStorage(store), nil
	}
	return store, nil
}
