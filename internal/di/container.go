package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gearbelt/api/internal/payments"
	"github.com/gearbelt/api/internal/platform/config"
	"github.com/gearbelt/api/internal/platform/observability"
	"github.com/gearbelt/api/internal/repositories"
	"github.com/gearbelt/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog      services.CatalogService
	Inventory    services.InventoryService
	Shipping     services.ShippingService
	Notification services.NotificationService
	Orders       services.OrderService
	System       services.SystemService
}

// Infrastructure carries the externally constructed dependencies that the
// container wires into services. Tests can supply stubs for any of them.
type Infrastructure struct {
	Mail    services.MailPublisher
	Gateway payments.Gateway
	Logger  *zap.Logger
	Build   services.BuildInfo
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub infrastructure.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := observability.EventLogger(logger)

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Products:  reg.Products(),
		Logger:    events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:  reg.Products(),
		Inventory: inventorySvc,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Brackets:         reg.ShippingBrackets(),
		DefaultCostCents: cfg.Shipping.DefaultCostCents,
		Logger:           events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	svc.Shipping = shippingSvc

	if infra.Mail == nil {
		return Services{}, errors.New("build notification service: mail publisher is required")
	}
	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Publisher: infra.Mail,
		From:      cfg.Mail.From,
		Logger:    events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notification = notificationSvc

	if infra.Gateway == nil {
		return Services{}, errors.New("build order service: payment gateway is required")
	}
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Products:     reg.Products(),
		Counters:     reg.Counters(),
		Inventory:    inventorySvc,
		Shipping:     shippingSvc,
		Notification: notificationSvc,
		Gateway:      infra.Gateway,
		Logger:       events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	build := infra.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now().UTC()
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Build:            build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
