package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/andresuchdata/autopo-py/depletion/internal/cache"
	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/pipeline"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository/postgres"
	"github.com/andresuchdata/autopo-py/depletion/internal/service"
	"github.com/andresuchdata/autopo-py/depletion/internal/storage"
	"github.com/andresuchdata/autopo-py/depletion/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (defaults to DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func databaseURL(c *cli.Context, cfg *config.Config) string {
	if url := c.String("db-url"); url != "" {
		return url
	}
	db := cfg.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode)
}

func initDB(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	db, err := sql.Open("pgx", databaseURL(c, cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *sql.DB {
	db, _ := c.Context.Value(dbKey{}).(*sql.DB)
	return db
}

// app bundles the services the commands run against.
type app struct {
	forecasts *service.ForecastService
	uploads   *service.UploadService
	archive   storage.ObjectStorage
	products  repository.ProductRepository
	warmer    *pipeline.Warmer
}

func newApp(c *cli.Context) (*app, error) {
	cfg := config.Load()

	db := postgres.Wrap(sqlx.NewDb(dbFrom(c), "pgx"))
	repos := postgres.Repositories(db)

	reportCache, err := cache.NewDepletionReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, cached reports will not be invalidated")
		reportCache = cache.NewNoopDepletionReportCache()
	}

	var archive storage.ObjectStorage
	if cfg.Storage.Enabled && !c.Bool("no-archive") {
		client, err := storage.NewMinioClient(c.Context, cfg.Storage)
		if err != nil {
			return nil, err
		}
		archive = client
	}

	forecasts := service.NewForecastService(repos, reportCache, cfg.Forecast)
	return &app{
		forecasts: forecasts,
		uploads:   service.NewUploadService(forecasts, archive, cfg.Storage.Prefix),
		archive:   archive,
		products:  repos.Products,
		warmer: pipeline.NewWarmer(forecasts, repos.Products, pipeline.WarmConfig{
			WorkerCount: cfg.Forecast.WarmWorkers,
		}),
	}, nil
}

func main() {
	cliApp := &cli.App{
		Name:  "forecastctl",
		Usage: "Operate the stock depletion forecasting backend",
		Flags: []cli.Flag{
			newDBURLFlag(),
		},
		Before: initDB,
		After:  closeDB,
		Commands: []*cli.Command{
			migrateCommand(),
			importCommand(),
			reportCommand(),
			pastSalesCommand(),
			uploadsCommand(),
			warmCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("forecastctl failed")
		os.Exit(1)
	}
}
