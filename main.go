package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Service configuration",
		zap.String("port", cfg.AppPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("events", cfg.EventsBackend),
		zap.String("payment_mode", cfg.PaymentMode),
		zap.Bool("redis_carts", cfg.RedisURL != ""))

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Order events are logged as they come back from the broker.
	err = application.ConsumeOrderEvents(func(msg amqp.Delivery) error {
		ev, err := events.Decode(msg.Body)
		if err != nil {
			return err
		}
		logger.Info("Received order event",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.String("type", string(ev.Type)),
			zap.Uint("order_id", ev.OrderID),
			zap.String("status", ev.Status))
		return nil
	})
	if err != nil {
		logger.Error("Failed to start RabbitMQ consumer", zap.Error(err))
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.AppPort))
		if err := application.Listen(); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}
