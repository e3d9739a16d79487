package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/api"
	"github.com/andresuchdata/autopo-py/depletion/internal/cache"
	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/drive"
	"github.com/andresuchdata/autopo-py/depletion/internal/ingest"
	"github.com/andresuchdata/autopo-py/depletion/internal/pipeline"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository/postgres"
	"github.com/andresuchdata/autopo-py/depletion/internal/service"
	"github.com/andresuchdata/autopo-py/depletion/internal/storage"
	"github.com/andresuchdata/autopo-py/depletion/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	repos := postgres.Repositories(db)

	reportCache, err := cache.NewDepletionReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, report cache disabled")
		reportCache = cache.NewNoopDepletionReportCache()
	}

	var archive storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(ctx, cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		archive = client
	}

	forecastService := service.NewForecastService(repos, reportCache, cfg.Forecast)
	salesService := service.NewSalesService(repos, forecastService)
	uploadService := service.NewUploadService(forecastService, archive, cfg.Storage.Prefix)

	services := &api.Services{
		ForecastService: forecastService,
		SalesService:    salesService,
		UploadService:   uploadService,
		ReportWarmer: pipeline.NewWarmer(forecastService, repos.Products, pipeline.WarmConfig{
			WorkerCount: cfg.Forecast.WarmWorkers,
		}),
	}

	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
		}
		source := drive.NewForecastSource(driveService, uploadService)
		services.DriveHandler = drive.NewHandler(driveService, source, cfg.Drive.FolderID)
	}

	if cfg.Kafka.Enabled {
		consumer, err := ingest.NewConsumer(cfg.Kafka, salesService)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize kafka consumer")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Log.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	}

	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Log.Info().Msg("Server exiting")
}
