// Package app wires configuration, storage, brokers and HTTP routes into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/kafka"
	"storefront/pkg/metrics"
	"storefront/pkg/payment"
	"storefront/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App is the assembled service.
type App struct {
	Server *fiber.App
	Auth   *services.AuthService
	Orders *services.OrderService

	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	mq      *rabbitmq.Client
	closers []func() error
}

// New opens every backend named by cfg, runs migrations and registers the routes.
// Anything opened before a failure is closed again.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			_ = a.close()
		}
	}()

	if insecure := cfg.InsecureDefaults(); len(insecure) > 0 {
		logger.Warn("running with development settings, do not expose this instance",
			zap.Strings("settings", insecure))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := repositories.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	store := repositories.NewGORMStore(a.db)

	carts, err := a.openCarts(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := a.openEvents()
	if err != nil {
		return nil, err
	}
	gateway, err := openGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Auth = services.NewAuthService(repositories.NewGORMUserRepository(a.db), cfg.JWTSecret, logger)
	productService := services.NewProductService(store.Products())
	cartService := services.NewCartService(carts, store.Products())
	wishlistService := services.NewWishlistService(repositories.NewGORMWishlistRepository(a.db), store.Products())
	a.Orders = services.NewOrderService(store, cartService, gateway, events.NewPublisher(sink, logger),
		services.OrderConfig{
			BaseURL:        cfg.BaseURL,
			Currency:       cfg.Currency,
			ShippingAmount: cfg.ShippingAmount,
			SessionTTL:     cfg.PaymentSessionTTL,
		}, logger)

	if cfg.AdminUsername != "" {
		if err := a.Auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to create admin account: %w", err)
		}
	}
	if cfg.SeedProducts {
		if err := seedProducts(ctx, productService, logger); err != nil {
			return nil, err
		}
	}

	a.Server = fiber.New(fiber.Config{AppName: "storefront"})
	a.Server.Use(recover.New())
	a.Server.Use(fiberlogger.New())
	a.Server.Use(metrics.Middleware())

	a.Server.Get("/health", a.health)
	a.Server.Get("/metrics", metrics.Handler())
	if cfg.PaymentMode == "mock" {
		handlers.NewMockCheckoutHandler(a.Orders, cfg.StripeWebhookSecret, logger).RegisterRoutes(a.Server)
	}

	apiV1 := a.Server.Group("/api/v1")
	handlers.NewAuthHandler(a.Auth, logger).RegisterRoutes(apiV1)
	handlers.NewPaymentHandler(a.Orders, logger).RegisterRoutes(apiV1)
	productHandler := handlers.NewProductHandler(productService, logger)
	productHandler.RegisterPublicRoutes(apiV1)

	// Routes registered on apiV1 before this group stay public.
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(a.Auth))
	productHandler.RegisterRoutes(protectedRoutes)
	handlers.NewCartHandler(cartService, logger).RegisterRoutes(protectedRoutes)
	handlers.NewWishlistHandler(wishlistService, logger).RegisterRoutes(protectedRoutes)
	handlers.NewOrderHandler(a.Orders, logger).RegisterRoutes(protectedRoutes)

	ready = true
	return a, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		// SQLite has a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func (a *App) openCarts(ctx context.Context) (repositories.CartRepository, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Warn("REDIS_URL not set, carts are kept in process memory")
		return repositories.NewMockCartRepository(), nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return repositories.NewRedisCartRepository(client, a.cfg.CartTTL), nil
}

func (a *App) openEvents() (events.Sink, error) {
	switch a.cfg.EventsBackend {
	case "rabbitmq":
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: a.cfg.RabbitMQURL}, a.logger)
		if err != nil {
			return nil, err
		}
		a.mq = client
		a.closers = append(a.closers, client.Close)
		return client, nil
	case "kafka":
		producer, err := kafka.NewProducer(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		return producer, nil
	default:
		return nil, nil
	}
}

func openGateway(cfg *config.Config, logger *zap.Logger) (payment.Gateway, error) {
	var inner payment.Gateway
	switch cfg.PaymentMode {
	case "stripe":
		inner = payment.NewStripeGateway(cfg.StripeKey, cfg.StripeWebhookSecret)
	case "mock":
		inner = payment.NewMockGateway(cfg.BaseURL, cfg.StripeWebhookSecret)
	default:
		return nil, fmt.Errorf("unsupported PAYMENT_MODE %q", cfg.PaymentMode)
	}
	return payment.NewBreakerGateway(inner, "payment-"+cfg.PaymentMode, logger), nil
}

func (a *App) health(c *fiber.Ctx) error {
	status := fiber.Map{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
		"events": a.cfg.EventsBackend,
	}
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		status["status"] = "unhealthy"
		status["database"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	status["database"] = "connected"
	return c.JSON(status)
}

// ConsumeOrderEvents feeds published order events back to handler. It is a no-op unless
// the RabbitMQ backend is active.
func (a *App) ConsumeOrderEvents(handler func(msg amqp.Delivery) error) error {
	if a.mq == nil {
		return nil
	}
	return a.mq.ConsumeOrderEvents(handler)
}

// Listen serves HTTP on the configured port until Shutdown.
func (a *App) Listen() error {
	return a.Server.Listen(a.cfg.AppPort)
}

// Shutdown stops accepting requests, waits for in-flight ones and closes every backend.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Server.ShutdownWithContext(ctx)
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// seedProducts fills an empty catalog with a few demo products.
func seedProducts(ctx context.Context, service *services.ProductService, logger *zap.Logger) error {
	existing, err := service.GetAllProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to check catalog: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: 1200.00, Stock: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: 75.00, Stock: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25.00, Stock: 50},
	}
	for i := range products {
		if err := service.CreateProduct(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].Name, err)
		}
		logger.Info("seeded product", zap.String("id", products[i].ID), zap.String("name", products[i].Name))
	}
	return nil
}
