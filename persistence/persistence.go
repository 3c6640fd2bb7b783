// Package persistence opens the bun database used by the local backend
// through a go-persistence-bun client and applies the embedded migrations.
package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	gopersistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/repository"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultPingTimeout     = 5 * time.Second

	pgxDriver = "pgx"
)

// Dialect names the SQL flavor behind a DSN.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor picks the dialect from the DSN scheme. Anything that is not a
// postgres URL is handed to sqlite.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Config is the client configuration handed to go-persistence-bun.
type Config struct {
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c Config) GetDSN() string {
	return c.DSN
}

func (c Config) GetServer() string {
	return c.DSN
}

func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetDriver() string {
	if DialectFor(c.DSN) == DialectPostgres {
		return pgxDriver
	}
	return sqliteshim.ShimName
}

func (c Config) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return c.PingTimeout
}

func (c Config) GetOtelIdentifier() string {
	return c.OtelIdentifier
}

func init() {
	for _, model := range repository.Models() {
		gopersistence.RegisterModel(model)
	}
}

// Connect opens the database behind cfg and verifies connectivity.
func Connect(ctx context.Context, cfg Config, logger workshop.Logger) (*gopersistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, goerrors.New("database dsn is required", goerrors.CategoryValidation).
			WithTextCode("DSN_REQUIRED")
	}

	sqldb, err := sql.Open(cfg.GetDriver(), cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to open database")
	}

	var dialect schema.Dialect
	switch DialectFor(cfg.DSN) {
	case DialectPostgres:
		sqldb.SetMaxOpenConns(DefaultMaxOpenConns)
		sqldb.SetMaxIdleConns(DefaultMaxIdleConns)
		sqldb.SetConnMaxLifetime(DefaultConnMaxLifetime)
		dialect = pgdialect.New()
	default:
		// sqlite serializes writers; a single connection also keeps
		// :memory: databases alive for the process.
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	client, err := gopersistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to create persistence client")
	}

	if logger != nil {
		client.SetLogger(logger)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.GetPingTimeout())
	defer cancel()

	if err := client.DB().PingContext(pingCtx); err != nil {
		_ = client.DB().Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to ping database").
			WithMetadata(map[string]any{"dialect": string(DialectFor(cfg.DSN))})
	}

	return client, nil
}

// Migrate registers the embedded migrations on client and applies the
// pending ones.
func Migrate(ctx context.Context, client *gopersistence.Client, logger workshop.Logger) error {
	client.RegisterDialectMigrations(
		repository.MigrationsFS(),
		gopersistence.WithDialectSourceLabel(repository.MigrationsLabel),
		gopersistence.WithValidationTargets(string(DialectPostgres), string(DialectSQLite)),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid migrations")
	}

	if err := client.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate database")
	}

	if report := client.Report(); report != nil && !report.IsZero() && logger != nil {
		logger.Info("migrations applied", "report", report.String())
	}

	return nil
}

// Open connects to dsn with the default client configuration.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	client, err := Connect(ctx, Config{DSN: dsn}, nil)
	if err != nil {
		return nil, err
	}
	return client.DB(), nil
}

// OpenAndMigrate opens dsn and applies any pending migrations.
func OpenAndMigrate(ctx context.Context, dsn string) (*bun.DB, error) {
	client, err := Connect(ctx, Config{DSN: dsn}, nil)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, client, nil); err != nil {
		_ = client.DB().Close()
		return nil, err
	}

	return client.DB(), nil
}
