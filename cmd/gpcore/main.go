package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/globalpool/gpcore/internal/config"
	"github.com/globalpool/gpcore/internal/datafetcher"
	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/metrics"
	"github.com/globalpool/gpcore/internal/referral"
	"github.com/globalpool/gpcore/internal/state"
	"github.com/globalpool/gpcore/internal/tracker"
	"github.com/globalpool/gpcore/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for the pool analytics core.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Str("data_source", config.DataSource).Msg("Pool analytics core starting...")

	// --- 2. Data Source ---
	var (
		source      datafetcher.Source
		healthCheck func() error
	)
	switch config.DataSource {
	case config.DataSourcePostgres:
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		indexer, err := state.NewIndexerSource(state.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create indexer source")
		}
		source = indexer
		healthCheck = state.TestDBConnection
	case config.DataSourceFixture:
		fixture, err := datafetcher.LoadFixture(config.FixturePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load fixture")
		}
		source = fixture
	}

	// --- 3. Components ---
	params := config.Parameters()
	m := metrics.NewWithRuntime()

	dashboard, err := tracker.New(tracker.Config{
		Source:         source,
		Parameters:     params,
		Metrics:        m,
		ReferralOrigin: config.ReferralOrigin,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create tracker")
	}
	network := referral.NewNetwork(source, referral.Options{Metrics: m})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.TrackIdentity != "" {
		if _, err := dashboard.SetIdentity(config.TrackIdentity); err != nil {
			log.Fatal().Err(err).Msg("Failed to track configured identity")
		}
		if _, err := network.Switch(ctx, config.TrackIdentity); err != nil {
			log.Warn().Err(err).Msg("Initial referral network load failed")
		}
	} else {
		log.Info().Msg("No TRACK_IDENTITY set; waiting for PUT /api/identity")
	}

	// --- 4. Web Server ---
	webServer := web.NewWebServer(config.WebPort, web.Config{
		Dashboard:   dashboard,
		Network:     network,
		Parameters:  params,
		Metrics:     m,
		HealthCheck: healthCheck,
	})
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting dashboard API")
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	// --- 5. Poll Loop ---
	log.Info().Str("interval", params.PollInterval.String()).Msg("Starting poll loop")
	dashboard.RunLoop(ctx, params.PollInterval)

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("Shutdown complete")
}
