package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	"github.com/wizarding-anonymous/identity_platform/internal/events"
	eventsKafka "github.com/wizarding-anonymous/identity_platform/internal/events/kafka"
	httpHandler "github.com/wizarding-anonymous/identity_platform/internal/handler/http"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/cache"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/database"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/database/postgres"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/queue"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
	"github.com/wizarding-anonymous/identity_platform/internal/service"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/logger"
	"github.com/wizarding-anonymous/identity_platform/internal/webhook"
)

const deliveryQueueName = "webhook-deliveries"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database, "migrations"); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}
	pool, err := postgres.NewDBPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	userRepo := database.NewPgxUserRepository(pool)
	recoveryRepo := database.NewPgxRecoveryCodeRepository(pool)
	webhookRepo := database.NewPgxWebhookRepository(pool)
	deliveryRepo := database.NewPgxDeliveryRepository(pool)

	// Security primitives
	hasher, err := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      cfg.Security.PasswordHash.Memory,
		Iterations:  cfg.Security.PasswordHash.Iterations,
		Parallelism: cfg.Security.PasswordHash.Parallelism,
		SaltLength:  cfg.Security.PasswordHash.SaltLength,
		KeyLength:   cfg.Security.PasswordHash.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("failed to build password hasher: %w", err)
	}
	codec, err := security.NewAESGCMCodec(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to build secret codec: %w", err)
	}
	totp := security.NewTOTPService(cfg.Security.TOTPIssuer)
	urls := security.NewSignedURLBuilder(cfg.JWT.SigningSecret, cfg.Server.BaseURL)

	// Cache tier
	challengeStore := cache.NewChallengeStore(redisClient, zapLogger)
	rateLimiter := cache.NewRateLimiter(redisClient, zapLogger, &cfg.Security.RateLimiting)
	denylist := cache.NewTokenDenylist(redisClient, zapLogger)
	retryQueue := queue.NewDelayedQueue(redisClient, zapLogger, deliveryQueueName)

	// Delivery engine
	sender := webhook.NewHTTPSender(&cfg.Webhook)
	deliveryEngine := webhook.NewDeliveryService(webhookRepo, deliveryRepo, retryQueue, sender,
		logger.WithComponent(zapLogger, "delivery-engine"))
	registry := webhook.NewRegistryService(webhookRepo, deliveryRepo, deliveryEngine, retryQueue, &cfg.Webhook,
		logger.WithComponent(zapLogger, "webhook-registry"))

	// Event bus
	var producer events.BrokerProducer
	var kafkaProducer *eventsKafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer, err = eventsKafka.NewProducer(&cfg.Kafka, logger.WithComponent(zapLogger, "kafka-producer"))
		if err != nil {
			return fmt.Errorf("failed to connect kafka producer: %w", err)
		}
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}
	bus := events.NewBus(producer, deliveryEngine, logger.WithComponent(zapLogger, "event-bus"))

	// Services
	tokenService, err := service.NewTokenService(&cfg.JWT, denylist, logger.WithComponent(zapLogger, "token-service"))
	if err != nil {
		return err
	}
	challengeService := service.NewChallengeService(challengeStore, rateLimiter, &cfg.Security,
		logger.WithComponent(zapLogger, "challenge-broker"))
	authService := service.NewAuthService(userRepo, recoveryRepo, hasher, totp, codec,
		tokenService, challengeService, rateLimiter, bus, urls, cfg,
		logger.WithComponent(zapLogger, "auth-service"))

	// HTTP surface
	authHandler := httpHandler.NewAuthHandler(authService, tokenService, logger.WithComponent(zapLogger, "auth-handler"))
	webhookHandler := httpHandler.NewWebhookHandler(registry, logger.WithComponent(zapLogger, "webhook-handler"))
	router := httpHandler.NewRouter(authHandler, webhookHandler, tokenService, rateLimiter, cfg, zapLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	worker := webhook.NewWorker(deliveryEngine, retryQueue, &cfg.Webhook,
		logger.WithComponent(zapLogger, "delivery-worker"))
	go worker.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	time.Sleep(100 * time.Millisecond) // let in-flight worker attempts log their outcome
	return nil
}
