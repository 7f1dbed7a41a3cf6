package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/interndesk/assessment-session-service/internal/config"
	"github.com/interndesk/assessment-session-service/internal/events"
	"github.com/interndesk/assessment-session-service/internal/handlers"
	"github.com/interndesk/assessment-session-service/internal/provider"
	"github.com/interndesk/assessment-session-service/internal/services"
	"github.com/interndesk/assessment-session-service/internal/store"
	"github.com/interndesk/assessment-session-service/internal/utils"
	"github.com/interndesk/assessment-session-service/internal/validator"
	"github.com/interndesk/assessment-session-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
	}

	// Initialize session registry
	var registry store.Registry
	if redisClient != nil {
		registry = store.NewRedisRegistry(redisClient, cfg.SessionTTL)
	} else {
		registry = store.NewMemoryRegistry()
	}

	// Initialize event publisher
	var publisher events.Publisher
	if cfg.EventBroker == "kafka" {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
	} else {
		publisher = events.NewGoChannelPublisher(slogLogger)
	}

	// Initialize provider client
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout, slogLogger)

	// Initialize validator
	validator := validator.New()

	// Initialize services
	sessionService := services.NewSessionService(providerClient, registry, publisher, slogLogger, validator)
	reportService := services.NewReportService(sessionService, slogLogger)

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(sessionService, reportService, logger, cfg.Casdoor)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close event publisher
	if err := publisher.Close(); err != nil {
		log.Printf("Failed to close event publisher: %v", err)
	}

	// Close session registry
	if err := registry.Close(); err != nil {
		log.Printf("Failed to close session registry: %v", err)
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
