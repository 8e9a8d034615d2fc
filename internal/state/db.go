/*

This file contains the connection pool and schema of the indexer database.

The indexer is an external process that mirrors pool contract state into
PostgreSQL. The analytics core only reads these tables.

*/

package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	DB, err = sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to the indexer database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// schemaSQL describes the tables the indexer fills. Amounts are NUMERIC in smallest units.
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS positions (
		position_id BIGINT PRIMARY KEY,
		owner VARCHAR(42) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(LOWER(owner), position_id);

	CREATE TABLE IF NOT EXISTS tick_data (
		position_id BIGINT PRIMARY KEY REFERENCES positions(position_id),
		start_tick BIGINT NOT NULL,
		current_tick BIGINT NOT NULL,
		upper_tick BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS position_claims (
		position_id BIGINT PRIMARY KEY REFERENCES positions(position_id),
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_standings (
		identity VARCHAR(42) PRIMARY KEY,
		directs_quantity BIGINT NOT NULL DEFAULT 0,
		value_invested NUMERIC(78, 0) NOT NULL DEFAULT 0,
		registered BOOLEAN NOT NULL DEFAULT FALSE,
		sponsor VARCHAR(42)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_standings_identity ON user_standings(LOWER(identity));

	-- Mirrors the contract's eligibility table: three parallel arrays of 15 entries.
	CREATE TABLE IF NOT EXISTS eligibility_tables (
		identity VARCHAR(42) PRIMARY KEY,
		is_eligible BOOLEAN[] NOT NULL,
		required_directs BIGINT[] NOT NULL,
		required_values NUMERIC(78, 0)[] NOT NULL,
		CONSTRAINT eligibility_tables_cardinality CHECK (
			cardinality(is_eligible) = 15 AND cardinality(required_directs) = 15 AND cardinality(required_values) = 15
		)
	);

	CREATE TABLE IF NOT EXISTS referrals (
		sponsor VARCHAR(42) NOT NULL,
		slot_index INTEGER NOT NULL,
		referral VARCHAR(42), -- NULL for an unfilled slot
		PRIMARY KEY (sponsor, slot_index)
	);

	CREATE TABLE IF NOT EXISTS pool_metrics (
		id INTEGER PRIMARY KEY DEFAULT 1,
		total_value_locked NUMERIC(78, 0) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);
	INSERT INTO pool_metrics (id, total_value_locked) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// EnsureSchema creates the indexer tables if they don't exist. Used for local setups;
// in production the indexer owns the schema.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Indexer schema ensured")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
