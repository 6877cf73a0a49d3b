package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orderdesk/api/internal/platform/config"
	"github.com/orderdesk/api/internal/repositories"
	"github.com/orderdesk/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderService
	Inventory services.InventoryService
	Reference services.ReferenceService
	Auth      services.AuthService
	System    services.SystemService
}

// Collaborators carries the infrastructure adapters built by the caller. Every field is optional
// except Tokens and Passwords, which the auth service cannot run without.
type Collaborators struct {
	Tokens    services.TokenIssuer
	Passwords services.PasswordHasher
	Events    services.OrderEventPublisher
	Metrics   services.OrderMetrics
	Logger    func(ctx context.Context, event string, fields map[string]any)
	Clock     func() time.Time
	Build     services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Collaborators) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases the repository registry and its database pool.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Collaborators) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Customers:  reg.Customers(),
		Addresses:  reg.Addresses(),
		Products:   reg.Products(),
		Inventory:  svc.Inventory,
		UnitOfWork: reg,
		Clock:      clock,
		Events:     deps.Events,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	referenceSvc, err := services.NewReferenceService(services.ReferenceServiceDeps{
		Customers: reg.Customers(),
		Products:  reg.Products(),
		Addresses: reg.Addresses(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build reference service: %w", err)
	}
	svc.Reference = referenceSvc

	authSvc, err := services.NewAuthService(services.AuthServiceDeps{
		Users:     reg.Users(),
		Tokens:    deps.Tokens,
		Passwords: deps.Passwords,
		Clock:     clock,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build auth service: %w", err)
	}
	svc.Auth = authSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Server.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = clock().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
