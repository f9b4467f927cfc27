// Package testenv provides postgres for tests of repositories.
//
// Tests using it are skipped unless PHT_TEST_DATABASE is set
// to a connection string of a disposable database.
package testenv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/pht-central/pkg/db/postgres/pool"
	"github.com/opst/pht-central/pkg/db/postgres/schema"
)

const EnvDatabase = "PHT_TEST_DATABASE"

var tables = []string{
	"train_station", "result", "train", "station", "registry_project", "client",
}

// GetPool returns a pool of the test database with the latest schema.
//
// Tables are cleaned up before returning and after t.
func GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()

	url := os.Getenv(EnvDatabase)
	if url == "" {
		t.Skipf("%s is not set", EnvDatabase)
	}

	p, err := pgxpool.Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	pool := kpool.Wrap(p)
	t.Cleanup(pool.Close)

	if err := schema.New(pool).Upgrade(ctx); err != nil {
		t.Fatal(err)
	}

	ClearTables(ctx, t, pool)
	t.Cleanup(func() { ClearTables(context.Background(), t, pool) })
	return pool
}

func ClearTables(ctx context.Context, t *testing.T, pool kpool.Pool) {
	t.Helper()
	for _, table := range tables {
		if _, err := pool.Exec(ctx, `DELETE FROM "`+table+`"`); err != nil {
			t.Fatal(err)
		}
	}
}

// Context is bounded by the deadline of t, with a margin to clean up.
func Context(t *testing.T) context.Context {
	ctx := context.Background()
	deadline, ok := t.Deadline()
	if !ok {
		return ctx
	}
	ctx, cancel := context.WithDeadline(ctx, deadline.Add(-2*time.Second))
	t.Cleanup(cancel)
	return ctx
}
