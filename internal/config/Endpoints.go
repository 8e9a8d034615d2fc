package config

import (
	"errors"

	"github.com/rs/zerolog/log"
)

const (
	DataSourcePostgres = "postgres"
	DataSourceFixture  = "fixture"
)

// Data source configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// DataSource selects where pool facts come from: the indexer database or a YAML fixture.
	DataSource string
	// FixturePath is the YAML file read when DataSource is "fixture".
	FixturePath string

	// Indexer database connection.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// loadEndpointConfig loads data source configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading data source configuration from environment variables...")

	var err error

	DataSource, err = getEnv("DATA_SOURCE")
	if err != nil {
		return err
	}

	switch DataSource {
	case DataSourceFixture:
		FixturePath, err = getEnv("FIXTURE_PATH")
		if err != nil {
			return err
		}
	case DataSourcePostgres:
		DBHost = getEnvOrDefault("DB_HOST", "localhost")
		DBPort, err = getEnvAsInt("DB_PORT", 5432)
		if err != nil {
			return err
		}
		DBUser, err = getEnv("DB_USER")
		if err != nil {
			return err
		}
		DBPassword = getEnvOrDefault("DB_PASSWORD", "")
		DBName, err = getEnv("DB_NAME")
		if err != nil {
			return err
		}
		DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	default:
		return errors.New("environment variable DATA_SOURCE must be 'postgres' or 'fixture', got: " + DataSource)
	}

	log.Debug().
		Str("DataSource", DataSource).
		Str("FixturePath", FixturePath).
		Str("DBHost", DBHost).
		Str("DBName", DBName).
		Msg("Data source configuration loaded successfully.")

	return nil
}
