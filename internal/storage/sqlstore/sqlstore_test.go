package sqlstore_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/storage/sqlstore"
	"github.com/rulebook-dev/rulebook/internal/testutil/teststore"
	"github.com/rulebook-dev/rulebook/internal/types"
)

func openSQLite(t *testing.T) storage.Storage {
	t.Helper()
	store, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "rulebook.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return store
}

func TestSQLiteConformance(t *testing.T) {
	teststore.RunConformance(t, openSQLite)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rulebook.db")

	store, err := sqlstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	env := teststore.NewEnv(t, store)
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{"code":"A-1"}`)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := sqlstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetFeedback(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFeedback after reopen: %v", err)
	}
	if string(got.Payload) != `{"code":"A-1"}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestSQLiteClosed(t *testing.T) {
	store := openSQLite(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	err := store.RunInTransaction(context.Background(), func(storage.Transaction) error { return nil })
	if !errors.Is(err, storage.ErrClosed) {
		t.Errorf("RunInTransaction on closed store = %v, want ErrClosed", err)
	}
}

func TestSQLiteConcurrentTransactionsSerialize(t *testing.T) {
	store := openSQLite(t)
	env := teststore.NewEnv(t, store)
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
				loaded, err := tx.GetFeedback(env.Ctx, f.ID)
				if err != nil {
					return err
				}
				return tx.UpdateFeedback(env.Ctx, loaded)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("transaction failed: %v", err)
		}
	}

	if got := env.MustGetFeedback(f.ID); got.Version != workers+1 {
		t.Errorf("Version = %d, want %d", got.Version, workers+1)
	}
}

func TestSQLiteEmptyNotesStoredAsNull(t *testing.T) {
	store := openSQLite(t).(*sqlstore.Store)
	env := teststore.NewEnv(t, store)
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)

	var notes *string
	if err := store.DB().QueryRowContext(env.Ctx, "SELECT review_notes FROM feedback WHERE id = ?", f.ID).Scan(&notes); err != nil {
		t.Fatalf("query: %v", err)
	}
	if notes != nil {
		t.Errorf("review_notes = %q, want NULL", *notes)
	}
	if store.Dialect() != "sqlite" {
		t.Errorf("Dialect() = %q", store.Dialect())
	}
}

// TestDoltServerConformance runs the contract against a dolt sql-server
// speaking the MySQL protocol. Requires Docker.
func TestDoltServerConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := dolt.Run(ctx, "dolthub/dolt-sql-server:1.43.0")
	if err != nil {
		t.Skipf("dolt container unavailable: %v", err)
	}
	t.Cleanup(func() {
		// Terminate the container (ignoring errors since we're cleaning up)
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("ConnectionString: %v", err)
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", parsed.Addr, err)
	}
	port, _ := strconv.Atoi(portStr)

	cfg := sqlstore.MySQLConfig{
		Host:     host,
		Port:     port,
		User:     parsed.User,
		Password: parsed.Passwd,
		Database: parsed.DBName,
	}
	teststore.RunConformance(t, func(t *testing.T) storage.Storage {
		store, err := sqlstore.OpenMySQL(ctx, cfg)
		if err != nil {
			t.Fatalf("OpenMySQL: %v", err)
		}
		// Subtests share the server database; start each one empty.
		for _, table := range []string{"feedback", "coding_rules", "rule_examples", "class_templates", "checklist_items"} {
			if _, err := store.DB().ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("clear %s: %v", table, err)
			}
		}
		return store
	})
}
