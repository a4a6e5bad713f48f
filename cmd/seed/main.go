// Command seed loads price bars and positions from CSV files into the
// analytics databases.
//
// Usage:
//
//	seed -prices prices.csv -positions positions.csv
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/config"
	"github.com/aristath/portfolio-analytics/internal/database"
	"github.com/aristath/portfolio-analytics/internal/modules/history"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/pkg/logger"
)

func main() {
	pricesPath := flag.String("prices", "", "CSV of asset,date,open,high,low,close,volume")
	positionsPath := flag.String("positions", "", "CSV of asset,quantity,cost_basis_price,acquired_at")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	ctx := context.Background()

	if *pricesPath == "" && *positionsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *pricesPath != "" {
		db := open(cfg, "history", log)
		defer db.Close()

		f, err := os.Open(*pricesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open prices file")
		}
		defer f.Close()

		bars, err := history.ReadBarsCSV(f)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse prices file")
		}

		store := history.NewHistoryDB(db.Conn(), history.NewBarValidator(true, log), log)
		for asset, assetBars := range bars {
			stored, rejected, err := store.SaveBars(ctx, asset, assetBars)
			if err != nil {
				log.Fatal().Err(err).Str("asset", asset).Msg("Failed to store bars")
			}
			for _, rej := range rejected {
				log.Warn().Str("asset", asset).Time("date", rej.Bar.Time).Str("reason", rej.Reason).Msg("Bar rejected")
			}
			log.Info().Str("asset", asset).Int("stored", stored).Msg("Prices seeded")
		}
	}

	if *positionsPath != "" {
		db := open(cfg, "portfolio", log)
		defer db.Close()

		f, err := os.Open(*positionsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open positions file")
		}
		defer f.Close()

		positions, err := portfolio.ReadPositionsCSV(f)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse positions file")
		}

		repo := portfolio.NewPositionRepository(db.Conn(), log)
		for _, pos := range positions {
			if err := repo.Upsert(ctx, pos); err != nil {
				log.Fatal().Err(err).Str("asset", pos.Asset).Msg("Failed to store position")
			}
		}
		log.Info().Int("positions", len(positions)).Msg("Positions seeded")
	}
}

func open(cfg *config.Config, name string, log zerolog.Logger) *database.DB {
	db, err := database.New(database.Config{
		Path:   cfg.DatabasePath(name),
		Name:   name,
		Driver: cfg.DBDriver,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
	}
	return db
}
