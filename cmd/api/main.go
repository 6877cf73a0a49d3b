package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orderdesk/api/internal/di"
	"github.com/orderdesk/api/internal/handlers"
	"github.com/orderdesk/api/internal/platform/auth"
	"github.com/orderdesk/api/internal/platform/config"
	"github.com/orderdesk/api/internal/platform/events"
	"github.com/orderdesk/api/internal/platform/idempotency"
	"github.com/orderdesk/api/internal/platform/observability"
	"github.com/orderdesk/api/internal/platform/sqldb"
	"github.com/orderdesk/api/internal/repositories"
	"github.com/orderdesk/api/internal/repositories/sqlstore"
	"github.com/orderdesk/api/internal/services"
)

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = time.Minute
	kafkaProbeTimeout  = 3 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("API_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	cfg, err := config.Load(ctx)
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", vErr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider, err := sqldb.Open(ctx, cfg.Database,
		sqldb.WithMigrationLogger(observability.NewMigrationLogger(logger.Named("migrate"))),
	)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if cfg.Database.MigrateOnStart {
		if err := provider.Migrate(); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var registryOpts []sqlstore.RegistryOption

	var redisClient *redis.Client
	if cfg.Idempotency.Store == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		registryOpts = append(registryOpts, sqlstore.WithHealthCheck(repositories.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}))
	}

	var publisher services.OrderEventPublisher
	if cfg.Events.Enabled() {
		writer, err := events.NewKafkaWriter(cfg.Events)
		if err != nil {
			logger.Fatal("failed to initialise kafka writer", zap.Error(err))
		}
		kafkaPublisher, err := events.NewKafkaOrderPublisher(writer)
		if err != nil {
			logger.Fatal("failed to initialise order publisher", zap.Error(err))
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("kafka writer close error", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
		registryOpts = append(registryOpts, sqlstore.WithHealthCheck(repositories.DependencyCheck{
			Name:    "kafka",
			Timeout: kafkaProbeTimeout,
			Check:   kafkaProbe(cfg.Events.KafkaBrokers),
		}))
	}

	registry, err := sqlstore.NewRegistry(provider, registryOpts...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("failed to initialise token manager", zap.Error(err))
	}

	metrics, err := observability.NewOrderMetrics(nil)
	if err != nil {
		logger.Fatal("failed to register order metrics", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)
	container, err := di.NewContainer(ctx, cfg, registry, di.Collaborators{
		Tokens:    tokens,
		Passwords: auth.NewPasswordHasher(0),
		Events:    publisher,
		Metrics:   metrics,
		Logger:    observability.EventLogger(logger.Named("services")),
		Build:     buildInfo,
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	idempotencyStore, err := newIdempotencyStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyOpts := []idempotency.MiddlewareOption{
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithLogger(logger.Named("idempotency")),
	}
	if !cfg.Idempotency.RequireKey {
		idempotencyOpts = append(idempotencyOpts, idempotency.WithOptionalKey())
	}

	authenticator := auth.NewAuthenticator(tokens)
	protected := authenticator.OptionalAuth()
	if cfg.Auth.Required {
		protected = authenticator.RequireAuth()
	}

	svc := container.Services
	orderHandlers := handlers.NewOrderHandlers(svc.Orders,
		handlers.WithOrderBodyLimit(cfg.Server.MaxBodyBytes),
		handlers.WithCreateOrderMiddlewares(idempotency.Middleware(idempotencyStore, idempotencyOpts...)),
	)
	referenceHandlers := handlers.NewReferenceHandlers(svc.Reference, svc.Orders)
	authHandlers := handlers.NewAuthHandlers(svc.Auth, handlers.WithLoginRateLimit(loginAttemptLimit, loginAttemptWindow, nil))
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	httpLogger := logger.Named("http")
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithDataRoutes(referenceHandlers.Routes),
		handlers.WithProtectedMiddlewares(protected),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serverLogger := httpLogger.With(zap.String("addr", server.Addr), zap.String("environment", cfg.Server.Environment))
		serverLogger.Info("orderdesk api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if cfg.Idempotency.CleanupInterval > 0 && cfg.Idempotency.Store != "redis" {
		group.Go(func() error {
			runIdempotencyCleanup(groupCtx, logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
	}
}

func newIdempotencyStore(cfg config.Config, client *redis.Client) (idempotency.Store, error) {
	switch cfg.Idempotency.Store {
	case "redis":
		return idempotency.NewRedisStore(client)
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

// runIdempotencyCleanup evicts expired in-memory records until ctx is cancelled. Redis expires keys itself.
func runIdempotencyCleanup(ctx context.Context, logger *zap.Logger, store idempotency.Store, cfg config.IdempotencyConfig) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
			cancel()
			if err != nil {
				logger.Error("idempotency cleanup error", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

// kafkaProbe dials the first reachable broker.
func kafkaProbe(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			lastErr = errors.New("no kafka brokers configured")
		}
		return lastErr
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}
