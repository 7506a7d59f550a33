package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/shenikar/dispatch_coordination_system/docs"
	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/config"
	v1 "github.com/shenikar/dispatch_coordination_system/internal/handler/http/v1"
	"github.com/shenikar/dispatch_coordination_system/internal/repository"
	"github.com/shenikar/dispatch_coordination_system/internal/repository/memory"
	"github.com/shenikar/dispatch_coordination_system/internal/service"
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
	"github.com/shenikar/dispatch_coordination_system/pkg/logger"
	"github.com/shenikar/dispatch_coordination_system/pkg/postgres"
	redisclient "github.com/shenikar/dispatch_coordination_system/pkg/redis"
)

// @title Dispatch Coordination System API
// @version 1.0
// @description Emergency dispatch coordination: incidents, ambulance units, dispatches and live change feeds.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// openStores поднимает хранилище выбранного драйвера и брокер сигналов об изменениях
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger, redisClient *redis.Client) (service.Stores, changefeed.Broker, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if redisClient == nil {
			return service.Stores{}, nil, nil, errors.New("postgres driver requires Redis for change signals")
		}
		if err := runMigrations(cfg, log); err != nil {
			return service.Stores{}, nil, nil, err
		}
		dbpool, err := postgres.NewPostgresDB(ctx, cfg)
		if err != nil {
			return service.Stores{}, nil, nil, err
		}
		log.Info("Successfully connected to PostgreSQL")

		broker := changefeed.NewRedisBroker(redisClient, cfg.FeedChannelPrefix)
		tm := repository.NewTxManager(dbpool, broker, log)
		return service.Stores{
			Tx:         tm,
			Incidents:  repository.NewIncidentRepository(tm),
			Units:      repository.NewUnitRepository(tm),
			Dispatches: repository.NewDispatchRepository(tm),
		}, broker, dbpool.Close, nil

	default:
		broker := changefeed.NewLocalBroker()
		store := memory.NewStore(broker, log)
		log.Warn("Using in-memory store, data is lost on restart")
		return service.Stores{
			Tx:         store,
			Incidents:  memory.NewIncidentRepository(store),
			Units:      memory.NewUnitRepository(store),
			Dispatches: memory.NewDispatchRepository(store),
		}, broker, func() {}, nil
	}
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis обязателен для postgres; с хранилищем в памяти работаем и без него
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		if cfg.StoreDriver == config.DriverPostgres {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.WithError(err).Warn("Redis is unavailable, webhooks are disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")
	}

	stores, broker, closeStore, err := openStores(ctx, cfg, log, redisClient)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Инициализация издателя вебхуков
	var publisher webhook.WebhookPublisher = webhook.NopWebhookPublisher{}
	if redisClient != nil {
		publisher = webhook.NewRedisWebhookPublisher(redisClient)
	}

	// Инициализация сервисов
	ledger := service.NewDispatchLedger(stores, log, cfg)
	feeds := service.NewFeeds(stores, broker, log, cfg.FeedResubscribeMaxDelay)
	board := service.NewBoard(feeds, log)

	handler := v1.NewHandler(v1.Services{
		Incidents:   service.NewIncidentService(stores, log, cfg, publisher),
		Units:       service.NewUnitService(stores, log, cfg),
		Ledger:      ledger,
		Coordinator: service.NewCoordinator(stores, ledger, publisher, log, cfg),
		Board:       board,
		Feeds:       feeds,
	}, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := board.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("operator board stopped: %w", err)
		}
		return nil
	})

	if redisClient != nil {
		webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
		g.Go(func() error { return webhookWorker.Run(gctx) })
	}

	g.Go(func() error {
		log.Infof("HTTP server started on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal, shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Info("Server gracefully stopped")
}
