// Command populate drops and recreates the library tables and inserts the
// sample catalog.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/config"
	"github.com/sandiJamlu23/library-app/internal/database"
	"github.com/sandiJamlu23/library-app/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx := context.Background()
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer db.Close()

	if err := database.Reset(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset tables")
	}
	n, err := database.Seed(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed books")
	}
	log.Info().Int("books", n).Str("path", cfg.DatabasePath).Msg("Database populated")
}
