package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/api/handlers"
	"github.com/andresuchdata/autopo-py/depletion/internal/api/middleware"
	"github.com/andresuchdata/autopo-py/depletion/internal/drive"
	"github.com/andresuchdata/autopo-py/depletion/internal/pipeline"
	"github.com/andresuchdata/autopo-py/depletion/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	ForecastService *service.ForecastService
	SalesService    *service.SalesService
	UploadService   *service.UploadService
	DriveHandler    *drive.Handler
	ReportWarmer    *pipeline.Warmer
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services != nil {
		if services.ForecastService != nil && services.UploadService != nil {
			forecastHandler := handlers.NewForecastHandler(services.ForecastService, services.UploadService)
			productGroup := apiGroup.Group("/products/:id")
			{
				productGroup.GET("/past_sales", forecastHandler.GetPastSales)
				productGroup.GET("/depletion", forecastHandler.GetDepletionReport)
				productGroup.GET("/targets", forecastHandler.GetTargets)
				productGroup.PUT("/targets", forecastHandler.PutTargets)
			}

			targetGroup := apiGroup.Group("/targets")
			{
				targetGroup.POST("/upload", forecastHandler.UploadTargets)
				targetGroup.GET("/uploads", forecastHandler.ListUploads)
			}
		}

		if services.SalesService != nil {
			salesHandler := handlers.NewSalesHandler(services.SalesService)
			apiGroup.POST("/sales", salesHandler.PostSales)
			apiGroup.PUT("/products/:id/stock", salesHandler.PutStock)
		}

		if services.ReportWarmer != nil {
			warmHandler := handlers.NewWarmHandler(services.ReportWarmer)
			apiGroup.POST("/reports/warm", warmHandler.PostWarm)
		}

		if services.DriveHandler != nil {
			services.DriveHandler.RegisterRoutes(apiGroup)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
