package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/globalpool/gpcore/internal/types"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// TrackIdentity is the wallet tracked from startup. Empty means wait for PUT /api/identity.
	TrackIdentity string

	// PollInterval overrides Parameters.PollInterval.
	PollInterval time.Duration

	// WebPort is the port of the HTTP API.
	WebPort string

	// ReferralOrigin is the site origin used to build referral links.
	ReferralOrigin string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Only the data source settings are required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	ReferralOrigin = getEnvOrDefault("REFERRAL_ORIGIN", "")

	TrackIdentity = ""
	if raw := getEnvOrDefault("TRACK_IDENTITY", ""); raw != "" {
		identity, err := types.NormalizeIdentity(raw)
		if err != nil {
			return errors.New("environment variable TRACK_IDENTITY is invalid: " + err.Error())
		}
		TrackIdentity = identity
	}

	var err error
	PollInterval, err = getEnvAsDuration("POLL_INTERVAL", DefaultParameters.PollInterval)
	if err != nil {
		return err
	}

	// Load data source configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("DataSource", DataSource).
		Str("TrackIdentity", TrackIdentity).
		Dur("PollInterval", PollInterval).
		Str("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// Parameters returns the defaults with the environment overrides applied.
func Parameters() types.Parameters {
	p := DefaultParameters
	if PollInterval > 0 {
		p.PollInterval = PollInterval
	}
	return p
}

// getEnv retrieves a string environment variable. Returns error if not set or blank.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when unset or blank.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if invalid.
func getEnvAsInt(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a time.Duration. Returns error if invalid.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}
