package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/api"
	"github.com/mfgsight/mfgsight-ai-go/internal/cache"
	"github.com/mfgsight/mfgsight-ai-go/internal/config"
	"github.com/mfgsight/mfgsight-ai-go/internal/database"
	"github.com/mfgsight/mfgsight-ai-go/internal/models"
	"github.com/mfgsight/mfgsight-ai-go/internal/services"
)

func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.StandardLogger()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Stores over the shared pool, traced per statement
	pool := database.NewTracedPool(db.Pool)
	metricStore := database.NewMetricStore(pool)
	modelStore := database.NewModelStore(pool)
	versionStore := database.NewVersionStore(pool)
	predictionStore := database.NewPredictionStore(pool)
	retrainStore := database.NewRetrainStore(pool)

	// Forecasting pipeline
	forecastCache := cache.NewForecastCache(redis, logger)
	forecaster := services.NewForecaster(metricStore, forecastCache, nil, logger)

	// Model lifecycle services
	registry := services.NewModelRegistry(services.RegistryConfig{Store: modelStore}, logger)
	ensemble := services.NewEnsemblePredictor(registry, logger)
	comparator := services.NewVersionComparator(versionStore, predictionStore, logger)

	var notifier models.NotificationSink
	if cfg.Telegram.BotToken != "" {
		tn, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.WithError(err).Warn("Telegram notifier disabled")
		} else {
			notifier = tn
		}
	}
	controller := services.NewRetrainController(registry, metricStore, versionStore, retrainStore, notifier, logger)

	// Scheduled retrain sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runRetrainSweep(sweepCtx, controller, cfg.SweepIntervalDuration(), logger)

	// Setup Gin router
	router := gin.Default()
	api.SetupRoutes(router, &api.Dependencies{
		DB:         db,
		Redis:      redis,
		Forecaster: forecaster,
		Registry:   registry,
		Ensemble:   ensemble,
		Retrain:    controller,
		Comparator: comparator,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stopSweep()

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// runRetrainSweep periodically evaluates every registered model and retrains
// the ones whose health checks fail.
func runRetrainSweep(ctx context.Context, controller *services.RetrainController, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithField("interval", interval.String()).Info("Scheduled retrain sweep started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduled retrain sweep stopped")
			return
		case <-ticker.C:
			controller.RunScheduledRetrainCheck(ctx)
		}
	}
}
