package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutrilog/billing-service/internal/api/rest"
	"github.com/nutrilog/billing-service/internal/app"
	"github.com/nutrilog/billing-service/internal/config"
	"github.com/nutrilog/billing-service/internal/kafka"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/pkg/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fallback := logger.New(logger.INFO)
		fallback.Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := repository.NewPostgresPool(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	var repo repository.SubscriptionRepository = repository.NewPostgresSubscriptionRepository(dbPool, log)

	if cfg.Redis.Enabled {
		cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		repo = repository.NewCachedSubscriptionRepository(repo, cache, log)
	}

	producer := kafka.NopProducer()
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
	}
	defer producer.Close()

	registry := prometheus.NewRegistry()

	application := app.New(cfg, app.Deps{
		Repo:     repo,
		Producer: producer,
		Registry: registry,
	}, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := rest.SetupRouter(log, registry, application.AuthMiddleware, application.SubscriptionHandler, application.WebhookHandler)
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
