package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/gearbelt/api/internal/di"
	"github.com/gearbelt/api/internal/handlers"
	"github.com/gearbelt/api/internal/payments"
	"github.com/gearbelt/api/internal/platform/auth"
	"github.com/gearbelt/api/internal/platform/config"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/platform/idempotency"
	"github.com/gearbelt/api/internal/platform/jobs"
	"github.com/gearbelt/api/internal/platform/observability"
	"github.com/gearbelt/api/internal/platform/secrets"
	"github.com/gearbelt/api/internal/repositories"
	firestoreRepo "github.com/gearbelt/api/internal/repositories/firestore"
	"github.com/gearbelt/api/internal/services"
)

// Staff roles recognised by the fulfillment endpoints.
const (
	roleAdmin         = "admin"
	roleWarehouse     = "warehouse_worker"
	roleReceivingDesk = "receiving_desk"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("configuration incomplete", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	mailTopic := pubsubClient.Topic(cfg.Mail.Topic)
	defer mailTopic.Stop()

	mailPublisher, err := jobs.NewPubSubMailPublisher(mailTopic)
	if err != nil {
		logger.Fatal("failed to initialise mail publisher", zap.Error(err))
	}

	healthRepo, err := newHealthRepository(firestoreClient, mailTopic)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	gateway, err := payments.NewLegacyGateway(cfg.Payment, payments.WithLogger(logger.Named("payments")))
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.Infrastructure{
		Mail:    mailPublisher,
		Gateway: gateway,
		Logger:  logger,
		Build:   buildInfoFromEnv(startedAt),
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	checkoutStore := idempotency.NewFirestoreStore(firestoreClient)
	checkoutGuard := idempotency.Guard(checkoutStore, idempotency.WithLogger(logger.Named("idempotency")))

	cleanupDone := make(chan struct{})
	cleanupTicker := time.NewTicker(time.Hour)
	go func() {
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				removed, err := checkoutStore.CleanupExpired(runCtx, time.Now().UTC(), 200)
				cancel()
				if err != nil {
					cleanupLogger.Error("cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("removed expired checkout keys", zap.Int("count", removed))
				}
			case <-cleanupDone:
				return
			}
		}
	}()

	productHandlers := handlers.NewProductHandlers(container.Services.Catalog)
	inventoryHandlers := handlers.NewInventoryHandlers(container.Services.Inventory)
	shippingHandlers := handlers.NewShippingHandlers(container.Services.Shipping)
	orderHandlers := handlers.NewOrderHandlers(container.Services.Orders)
	healthHandlers := handlers.NewHealthHandlers(container.Services.System)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(productHandlers.PublicRoutes),
		handlers.WithShippingRoutes(shippingHandlers.PublicRoutes),
		handlers.WithOrderRoutes(func(r chi.Router) {
			r.Use(checkoutGuard)
			orderHandlers.PublicRoutes(r)
		}),
		handlers.WithStaffRoutes(staffRoutes(authenticator, productHandlers, inventoryHandlers, shippingHandlers, orderHandlers)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("gearbelt api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	close(cleanupDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// staffRoutes mounts the authenticated fulfillment surface. Each group carries
// its own role set so warehouse and receiving staff only see their endpoints.
func staffRoutes(authenticator *auth.Authenticator, products *handlers.ProductHandlers, inventory *handlers.InventoryHandlers, shipping *handlers.ShippingHandlers, orders *handlers.OrderHandlers) handlers.RouteRegistrar {
	return func(r chi.Router) {
		r.Group(func(g chi.Router) {
			g.Use(authenticator.RequireAuth(roleAdmin, roleWarehouse))
			g.Route("/orders", orders.StaffRoutes)
		})
		r.Group(func(g chi.Router) {
			g.Use(authenticator.RequireAuth(roleAdmin, roleReceivingDesk))
			g.Route("/inventory", inventory.Routes)
		})
		r.Group(func(g chi.Router) {
			g.Use(authenticator.RequireAuth(roleAdmin))
			g.Route("/products", products.AdminRoutes)
			g.Route("/shipping", shipping.AdminRoutes)
		})
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client, topic *pubsub.Topic) (repositories.HealthRepository, error) {
	probes := []repositories.DependencyProbe{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Probe: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
		{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Probe: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("mail topic %s does not exist", topic.ID())
				}
				return nil
			},
		},
	}
	return repositories.NewProbeHealthRepository(probes)
}
