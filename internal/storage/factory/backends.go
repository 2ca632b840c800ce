package factory

import (
	"context"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/storage/memory"
	"github.com/rulebook-dev/rulebook/internal/storage/sqlstore"
)

func init() {
	RegisterBackend(BackendSQLite, func(ctx context.Context, path string, _ Options) (storage.Storage, error) {
		return sqlstore.OpenSQLite(ctx, path)
	})

	// Server mode: the database lives on the server, path is unused.
	RegisterBackend(BackendMySQL, func(ctx context.Context, _ string, opts Options) (storage.Storage, error) {
		return sqlstore.OpenMySQL(ctx, opts.MySQL)
	})

	// Nothing survives the process; useful for demos and dry runs.
	RegisterBackend(BackendMemory, func(context.Context, string, Options) (storage.Storage, error) {
		return memory.New(), nil
	})
}
