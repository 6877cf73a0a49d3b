package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Server.Environment)
	}
	if cfg.Server.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("unexpected max body bytes: %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver by default, got %s", cfg.Database.Driver)
	}
	if !cfg.Database.MigrateOnStart {
		t.Error("expected migrations on start by default")
	}
	if cfg.Database.MigrationsTable != defaultMigrationsTable {
		t.Errorf("unexpected migrations table: %s", cfg.Database.MigrationsTable)
	}
	if cfg.Database.TxTimeout != defaultTxTimeout {
		t.Errorf("expected default tx timeout %s, got %s", defaultTxTimeout, cfg.Database.TxTimeout)
	}
	if cfg.Auth.Required {
		t.Error("expected auth to be optional by default")
	}
	if cfg.Auth.TokenTTL != defaultTokenTTL {
		t.Errorf("unexpected token ttl: %s", cfg.Auth.TokenTTL)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupInterval != defaultIdempotencyInterval {
		t.Errorf("unexpected default cleanup interval: %s", cfg.Idempotency.CleanupInterval)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
	if cfg.Idempotency.Store != "memory" {
		t.Errorf("expected memory idempotency store, got %s", cfg.Idempotency.Store)
	}
	if cfg.Events.Enabled() {
		t.Errorf("expected events disabled without brokers, got %v", cfg.Events.KafkaBrokers)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":             "9090",
		"API_SERVER_READ_TIMEOUT":     "20s",
		"API_SERVER_SHUTDOWN_TIMEOUT": "3s",
		"API_ENVIRONMENT":             "PROD",
		"API_DB_DRIVER":               "Postgres",
		"API_DB_HOST":                 "db.internal",
		"API_DB_PORT":                 "6543",
		"API_DB_USER":                 "orders",
		"API_DB_PASSWORD":             "s3cret",
		"API_DB_NAME":                 "orders",
		"API_DB_MAX_OPEN_CONNS":       "25",
		"API_DB_TX_TIMEOUT":           "5s",
		"API_DB_MIGRATE_ON_START":     "false",
		"API_AUTH_JWT_SECRET":         "signing-key",
		"API_AUTH_REQUIRED":           "yes",
		"API_AUTH_TOKEN_TTL":          "1h",
		"API_IDEMPOTENCY_STORE":       "redis",
		"API_IDEMPOTENCY_REQUIRE_KEY": "on",
		"API_REDIS_ADDR":              "cache:6379",
		"API_REDIS_DB":                "2",
		"API_EVENTS_KAFKA_BROKERS":    "k1:9092, k2:9092,,",
		"API_EVENTS_TOPIC":            "orders",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Environment != "prod" {
		t.Errorf("expected lowercased environment, got %s", cfg.Server.Environment)
	}
	wantDB := DatabaseConfig{
		Driver:          "postgres",
		Host:            "db.internal",
		Port:            6543,
		User:            "orders",
		Password:        "s3cret",
		Name:            "orders",
		SSLMode:         defaultDatabaseSSLMode,
		Path:            defaultSQLitePath,
		MaxOpenConns:    25,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		TxTimeout:       5 * time.Second,
		MigrateOnStart:  false,
		MigrationsTable: defaultMigrationsTable,
	}
	if !reflect.DeepEqual(cfg.Database, wantDB) {
		t.Errorf("unexpected database config:\n got %+v\nwant %+v", cfg.Database, wantDB)
	}
	if !cfg.Auth.Required || cfg.Auth.JWTSecret != "signing-key" || cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Idempotency.Store != "redis" || !cfg.Idempotency.RequireKey {
		t.Errorf("unexpected idempotency config: %+v", cfg.Idempotency)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.Events.KafkaBrokers, want) {
		t.Errorf("expected brokers %v, got %v", want, cfg.Events.KafkaBrokers)
	}
	if !cfg.Events.Enabled() || cfg.Events.Topic != "orders" {
		t.Errorf("unexpected events config: %+v", cfg.Events)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_DB_PATH=\"file:dev.db\"\nAPI_REDIS_ADDR='redis:6380'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected explicit map to win over dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Database.Path != "file:dev.db" {
		t.Errorf("expected dotenv sqlite path, got %s", cfg.Database.Path)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("expected dotenv redis addr, got %s", cfg.Redis.Addr)
	}
}

func TestLoadSystemEnvOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}
	t.Setenv("API_SERVER_PORT", "5050")

	cfg, err := Load(context.Background(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "5050" {
		t.Errorf("expected system env to win over dotenv, got %s", cfg.Server.Port)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := map[string]string{
		"API_DB_DRIVER":            "postgres",
		"API_DB_HOST":              " ",
		"API_AUTH_REQUIRED":        "true",
		"API_IDEMPOTENCY_STORE":    "memcached",
		"API_EVENTS_KAFKA_BROKERS": "k1:9092",
		"API_EVENTS_TOPIC":         "",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	want := []string{"Database.Host", "Database.Name", "Auth.JWTSecret", "Idempotency.Store"}
	if got := vErr.Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{"API_DB_DRIVER": "oracle"}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := vErr.Fields(); len(fields) != 1 || fields[0] != "Database.Driver" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	env := map[string]string{
		"API_SERVER_READ_TIMEOUT": "soon",
		"API_DB_PORT":             "five",
		"API_AUTH_REQUIRED":       "maybe",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected fallback read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Port != defaultDatabasePort {
		t.Errorf("expected fallback db port, got %d", cfg.Database.Port)
	}
	if cfg.Auth.Required {
		t.Error("expected fallback auth flag false")
	}
}
