// Package main is the entry point for the portfolio analytics service.
// It loads price history and positions from sqlite, recomputes the portfolio
// report on a schedule and serves it over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/cache"
	"github.com/aristath/portfolio-analytics/internal/config"
	"github.com/aristath/portfolio-analytics/internal/database"
	"github.com/aristath/portfolio-analytics/internal/events"
	"github.com/aristath/portfolio-analytics/internal/export"
	"github.com/aristath/portfolio-analytics/internal/modules/analytics"
	analyticshandlers "github.com/aristath/portfolio-analytics/internal/modules/analytics/handlers"
	"github.com/aristath/portfolio-analytics/internal/modules/history"
	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/optimization"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
	"github.com/aristath/portfolio-analytics/internal/scheduler"
	"github.com/aristath/portfolio-analytics/internal/server"
	"github.com/aristath/portfolio-analytics/pkg/logger"
)

const (
	cacheMaxAge         = 7 * 24 * time.Hour
	exportRetentionDays = 90
	exportKeep          = 30
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("benchmark", cfg.BenchmarkSymbol).
		Str("driver", cfg.DBDriver).
		Msg("Starting portfolio analytics")

	historyDB := openDatabase(cfg, "history", database.ProfileStandard, log)
	defer historyDB.Close()
	portfolioDB := openDatabase(cfg, "portfolio", database.ProfileStandard, log)
	defer portfolioDB.Close()
	cacheDB := openDatabase(cfg, "cache", database.ProfileCache, log)
	defer cacheDB.Close()

	// Stores
	validator := history.NewBarValidator(true, log)
	historyStore := history.NewHistoryDB(historyDB.Conn(), validator, log)
	positionRepo := portfolio.NewPositionRepository(portfolioDB.Conn(), log)
	resultCache := cache.NewSQLiteCache(cacheDB.Conn(), log)

	// Engines
	indicatorEngine := indicators.NewEngine(log)
	riskEngine := risk.NewEngine(cfg.RiskOptions(), log)
	aggregator := portfolio.NewAggregator(indicatorEngine, riskEngine, cfg.PortfolioOptions(), log)
	optimizer := optimization.NewOptimizer(cfg.OptimizationOptions(), log)

	analyticsService := analytics.NewService(
		positionRepo,
		historyStore,
		aggregator,
		indicatorEngine,
		riskEngine,
		optimizer,
		resultCache,
		analytics.Options{
			Benchmark:    cfg.BenchmarkSymbol,
			LookbackDays: cfg.LookbackDays,
			Indicators:   cfg.IndicatorParams(),
		},
		log,
	)

	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store export.ObjectStore
	if cfg.Export.Enabled() {
		s3Client, err := export.NewS3Client(ctx, export.ClientConfig{
			Bucket:    cfg.Export.Bucket,
			Endpoint:  cfg.Export.Endpoint,
			Region:    cfg.Export.Region,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create export client, report export disabled")
		} else {
			store = s3Client
		}
	}
	exporter := export.NewExporter(store, cfg.Export.Prefix, log)

	// Jobs
	refreshJob := scheduler.NewRefreshJob(analyticsService, exporter, eventManager, 5*time.Minute, log)
	walJob := scheduler.NewCheckWALCheckpointsJob(log, historyDB, portfolioDB, cacheDB)
	pruneJob := scheduler.NewPruneCacheJob(resultCache, exporter, cacheMaxAge, exportRetentionDays, exportKeep, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Failed to register refresh job")
	}
	if err := sched.AddJob("@hourly", walJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	if err := sched.AddJob("0 30 3 * * *", pruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache prune job")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Databases: []*database.DB{historyDB, portfolioDB, cacheDB},
		Analytics: analyticshandlers.NewHandler(analyticsService, eventBus, log),
		Jobs:      []scheduler.Job{refreshJob, walJob, pruneJob},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Compute the first report right away so the API has data before the first tick
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed")
		}
	}()
	sched.Start()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openDatabase opens and migrates one of the service databases, exiting on failure
func openDatabase(cfg *config.Config, name string, profile database.DatabaseProfile, log zerolog.Logger) *database.DB {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(name),
		Profile: profile,
		Name:    name,
		Driver:  cfg.DBDriver,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
	}
	log.Info().Str("database", name).Str("path", db.Path()).Msg("Database ready")
	return db
}
