package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/orderdesk/api/internal/platform/config"
)

// Dialect identifies the SQL backend behind a Provider.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"

	defaultPingTimeout     = 10 * time.Second
	defaultMigrationsTable = "schema_migrations"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// ErrProviderClosed is returned once Close has been called.
var ErrProviderClosed = errors.New("sqldb: provider is closed")

// Provider owns the shared *sql.DB and implements repositories.UnitOfWork.
type Provider struct {
	db              *sql.DB
	dialect         Dialect
	migrationsTable string
	migrationLog    migrate.Logger
	txOptions       []TxOption
	closed          atomic.Bool
}

// ProviderOption customises the Provider behaviour.
type ProviderOption func(*Provider)

// WithMigrationsTable overrides the table golang-migrate uses to track versions.
func WithMigrationsTable(table string) ProviderOption {
	return func(p *Provider) {
		if table = strings.TrimSpace(table); table != "" {
			p.migrationsTable = table
		}
	}
}

// WithMigrationLogger routes golang-migrate progress output to logger.
func WithMigrationLogger(logger migrate.Logger) ProviderOption {
	return func(p *Provider) {
		p.migrationLog = logger
	}
}

// WithTxOptions adds options applied to every transaction started by RunInTx.
func WithTxOptions(opts ...TxOption) ProviderOption {
	return func(p *Provider) {
		p.txOptions = append(p.txOptions, opts...)
	}
}

// NewProvider wraps an already opened database.
func NewProvider(db *sql.DB, dialect Dialect, opts ...ProviderOption) (*Provider, error) {
	if db == nil {
		return nil, errors.New("sqldb: database is required")
	}
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("sqldb: unsupported dialect %q", dialect)
	}
	p := &Provider{db: db, dialect: dialect, migrationsTable: defaultMigrationsTable}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Open connects to the database described by cfg and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...ProviderOption) (*Provider, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(cfg.Driver)))

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", PostgresDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("sqldb: open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	case DialectSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = ":memory:"
		}
		db, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("sqldb: open sqlite: %w", err)
		}
		// SQLite serialises writers and an in-memory database lives only as long as its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", cfg.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqldb: ping %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqldb: enable sqlite foreign keys: %w", err)
		}
	}

	base := []ProviderOption{
		WithMigrationsTable(cfg.MigrationsTable),
		WithTxOptions(WithTxTimeout(cfg.TxTimeout)),
	}
	if dialect == DialectPostgres {
		// Status transitions and stock updates rely on row locks being re-evaluated after a concurrent commit.
		base = append(base, WithTxOptions(WithIsolation(sql.LevelReadCommitted)))
	}
	return NewProvider(db, dialect, append(base, opts...)...)
}

// PostgresDSN renders a lib/pq keyword/value connection string.
func PostgresDSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslMode)
}

// DB exposes the underlying pool.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Dialect reports the backend flavour.
func (p *Provider) Dialect() Dialect {
	return p.dialect
}

// Querier returns the transaction bound to ctx, falling back to the pool.
func (p *Provider) Querier(ctx context.Context) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return p.db
}

// RunInTx implements repositories.UnitOfWork.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	return RunTransaction(ctx, p.db, fn, p.txOptions...)
}

// Ping verifies connectivity for readiness probes.
func (p *Provider) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	return WrapError("ping", p.db.PingContext(ctx))
}

// Migrate applies the embedded schema migrations for the provider's dialect.
func (p *Provider) Migrate() error {
	var (
		driver database.Driver
		err    error
	)
	switch p.dialect {
	case DialectPostgres:
		driver, err = migratepostgres.WithInstance(p.db, &migratepostgres.Config{MigrationsTable: p.migrationsTable})
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(p.db, &migratesqlite.Config{MigrationsTable: p.migrationsTable})
	}
	if err != nil {
		return fmt.Errorf("sqldb: create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations/"+string(p.dialect))
	if err != nil {
		return fmt.Errorf("sqldb: open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(p.dialect), driver)
	if err != nil {
		return fmt.Errorf("sqldb: create migrate instance: %w", err)
	}
	if p.migrationLog != nil {
		m.Log = p.migrationLog
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqldb: run migrations: %w", err)
	}
	return nil
}

// Close releases the pool. The Provider cannot be reused afterwards.
func (p *Provider) Close(context.Context) error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}
