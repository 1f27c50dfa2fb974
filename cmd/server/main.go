package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeynil/game-payment-ledger/internal/api"
	"github.com/honeynil/game-payment-ledger/internal/config"
	"github.com/honeynil/game-payment-ledger/internal/handler"
	"github.com/honeynil/game-payment-ledger/internal/infrastructure/database"
	"github.com/honeynil/game-payment-ledger/internal/infrastructure/kafka"
	"github.com/honeynil/game-payment-ledger/internal/infrastructure/redis"
	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/observability"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	"github.com/honeynil/game-payment-ledger/internal/repository/memory"
	core "github.com/honeynil/game-payment-ledger/internal/repository/postgres"
	service "github.com/honeynil/game-payment-ledger/internal/services"
)

type repositories struct {
	accounts repository.AccountRepository
	games    repository.GameRepository
	payments repository.PaymentRepository
	db       *sql.DB
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем логи, метрики, трейсы
	shutdownTracing := observability.Setup(ctx, observability.Options{
		ServiceName:  "game-payment-ledger",
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLPEndpoint,
		MetricsAddr:  cfg.MetricsAddr,
	})

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	// Redis и Kafka опциональны: пустой адрес отключает их
	var idempotency redis.IdempotencyStore
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		idempotency = redis.NewStore(client, cfg.IdempotencyTTL)
	}

	var publisher kafka.PaymentPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPaymentWriter(cfg.KafkaBrokers, cfg.PaymentsTopic)
	}

	// Инициализируем сервис
	registry := service.NewAccountRegistry(repos.accounts, repos.games, cfg.AccountCreateAttempts)
	engine := service.NewPaymentEngine(registry, repos.games, repos.payments, publisher)
	statements := service.NewStatementReader(repos.accounts, repos.payments)
	svc := service.NewLedgerService(registry, engine, statements, repos.payments, idempotency)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	var consumer *kafka.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.ParticipantsTopic, cfg.KafkaGroupID, svc)
		go func() {
			defer close(consumerDone)
			consumer.Consume(consumerCtx)
		}()
	} else {
		close(consumerDone)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(handler.NewHandler(svc), cfg.JWTSecret),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr, "storage_driver", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	stopConsumer()
	<-consumerDone
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			slog.Error("failed to close consumer", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			slog.Error("failed to close producer", "error", err)
		}
	}
	if idempotency != nil {
		if err := idempotency.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}
	if repos.db != nil {
		if err := repos.db.Close(); err != nil {
			slog.Error("failed to close postgres", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}
	slog.Info("server stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		// локальный запуск без game service: одна активная игра с двумя участниками
		store.AddGame(models.Game{ID: 1, Name: "local", Status: models.GameStatusActive, StartBalance: decimal.NewFromInt(1500)}, 1, 2)
		slog.Warn("using in-memory ledger, data is lost on restart")
		return &repositories{
			accounts: memory.NewAccountRepository(store),
			games:    memory.NewGameRepository(store),
			payments: memory.NewPaymentRepository(store),
		}, nil
	}

	db, err := database.Connect(ctx, database.Config{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return &repositories{
		accounts: core.NewPostgresAccountRepository(db),
		games:    core.NewPostgresGameRepository(db),
		payments: core.NewPostgresPaymentRepository(db, database.NewTxRetryPolicy(cfg.DBTxMaxRetries)),
		db:       db,
	}, nil
}
