package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]Dialect{
		"postgres://u:p@localhost:5432/db":   DialectPostgres,
		"POSTGRESQL://localhost/db":          DialectPostgres,
		"file:workshop.db?cache=shared":      DialectSQLite,
		":memory:":                           DialectSQLite,
		"/var/lib/workshop/workshop.sqlite3": DialectSQLite,
	}

	for dsn, want := range cases {
		assert.Equal(t, want, DialectFor(dsn), dsn)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
}

func TestConfigDriver(t *testing.T) {
	assert.Equal(t, "pgx", Config{DSN: "postgres://localhost/db"}.GetDriver())
	assert.Equal(t, sqliteshim.ShimName, Config{DSN: ":memory:"}.GetDriver())
	assert.Equal(t, DefaultPingTimeout, Config{}.GetPingTimeout())
	assert.Equal(t, time.Second, Config{PingTimeout: time.Second}.GetPingTimeout())
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()

	db, err := OpenAndMigrate(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	m := repository.NewManager(db)
	_, err = m.Profiles().Insert(ctx, workshop.NewProfile("owner-1", "Ada"))
	require.NoError(t, err)

	found, err := m.Profiles().FindByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)
}

func TestMigrateIsRepeatable(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "workshop.db")

	db, err := OpenAndMigrate(ctx, dsn)
	require.NoError(t, err)

	m := repository.NewManager(db)
	_, err = m.Profiles().Insert(ctx, workshop.NewProfile("owner-1", "Ada"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenAndMigrate(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	found, err := repository.NewManager(db).Profiles().FindByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)
}
