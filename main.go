package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ExamForge-2025/exam-engine/internal/config"
	"github.com/ExamForge-2025/exam-engine/internal/events"
	"github.com/ExamForge-2025/exam-engine/internal/handlers"
	"github.com/ExamForge-2025/exam-engine/internal/repositories/casdoor"
	"github.com/ExamForge-2025/exam-engine/internal/repositories/postgres"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"github.com/ExamForge-2025/exam-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis and Kafka are optional: without redis the catalog cache turns
	// into pass-through reads, without Kafka no events go out. Neither
	// blocks serving exams.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = pkg.NewRedisClient(cfg); err != nil {
			logger.Warn("redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}

	var publisher events.EventPublisher
	if !cfg.KafkaDisabled {
		if publisher, err = events.NewKafkaEventPublisher(cfg.KafkaBrokers, slogLogger); err != nil {
			logger.Warn("kafka unavailable, running without events", "error", err)
			publisher = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("repositories: %v", err)
	}

	v := validator.New()

	serviceManager := services.NewDefaultServiceManager(db, repoManager.GetRepository(), slogLogger, v, publisher)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("services: %v", err)
	}

	handlerManager := handlers.NewHandlerManager(serviceManager, v, logger, cfg.Casdoor, repoManager.GetRepository().User())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown forced", "error", err)
	}

	// Service shutdown closes the publisher, the repositories, and through
	// them the database and redis connections.
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("service shutdown", "error", err)
	}

	logger.Info("server exited")
}
