package main

import (
	"context"
	"os"

	"github.com/globalpool/gpcore/internal/config"
	"github.com/globalpool/gpcore/internal/datafetcher"
	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Drops and recreates the indexer tables of a local database. With SEED_FIXTURE set,
// the fixture at that path is written into the fresh tables.
func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(config.LogLevel)
	log.Info().Msg("Starting database reset script...")

	if config.DataSource != config.DataSourcePostgres {
		log.Fatal().Str("data_source", config.DataSource).Msg("DATA_SOURCE must be 'postgres' to reset the database")
	}

	dbCfg := state.DBConfig{
		Host:     config.DBHost,
		Port:     config.DBPort,
		User:     config.DBUser,
		Password: config.DBPassword,
		DBName:   config.DBName,
		SSLMode:  config.DBSSLMode,
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	log.Info().Msg("Connected to database. Dropping and recreating indexer tables...")
	if err := state.ResetSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset database schema")
	}
	log.Info().Msg("Database schema successfully recreated")

	if path := os.Getenv("SEED_FIXTURE"); path != "" {
		fixture, err := datafetcher.ReadFixture(path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read seed fixture")
		}
		if err := state.SeedFixture(context.Background(), state.DB, fixture); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed database")
		}
		log.Info().Str("fixture", path).Msg("Database seeded")
	}

	log.Info().Msg("Database reset complete!")
}
