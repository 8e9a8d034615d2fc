package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/globalpool/gpcore/internal/actions"
	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/metrics"
	"github.com/globalpool/gpcore/internal/referral"
	"github.com/globalpool/gpcore/internal/types"
	"github.com/globalpool/gpcore/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// refreshTimeout bounds the poll triggered by an identity change.
const refreshTimeout = 30 * time.Second

// Dashboard is the poll state the server exposes.
type Dashboard interface {
	Snapshot() (types.DashboardSnapshot, bool)
	SetIdentity(identity string) (string, error)
	Identity() string
	RunCycle(ctx context.Context) error
}

// Network is the referral tree the server exposes.
type Network interface {
	Switch(ctx context.Context, identity string) (*referral.Tree, error)
	Reset(ctx context.Context) (*referral.Tree, error)
	Expand(ctx context.Context, path referral.Path) error
	Collapse(path referral.Path) error
	View() (types.NetworkView, error)
}

// Config holds what the server needs besides its port.
type Config struct {
	Dashboard   Dashboard
	Network     Network
	Parameters  types.Parameters
	Metrics     *metrics.Metrics
	HealthCheck func() error // optional, e.g. a database ping
}

// WebServer serves the dashboard API
type WebServer struct {
	router *mux.Router
	port   string
	cfg    Config

	mu     sync.Mutex
	server *http.Server

	// identityMu keeps the tracked identity and the mounted referral tree in step.
	identityMu sync.Mutex
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, cfg Config) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		cfg:    cfg,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", ws.cfg.Metrics.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/dashboard", ws.handleGetDashboard).Methods("GET")
	api.HandleFunc("/positions", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/eligibility", ws.handleGetEligibility).Methods("GET")
	api.HandleFunc("/identity", ws.handlePutIdentity).Methods("PUT")
	api.HandleFunc("/network", ws.handleGetNetwork).Methods("GET")
	api.HandleFunc("/network/expand", ws.handleExpandNode).Methods("POST")
	api.HandleFunc("/network/collapse", ws.handleCollapseNode).Methods("POST")
	api.HandleFunc("/network/reset", ws.handleResetNetwork).Methods("POST")
	api.HandleFunc("/quote", ws.handleGetQuote).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server. It returns http.ErrServerClosed after Shutdown.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ws.mu.Lock()
	ws.server = server
	ws.mu.Unlock()

	return server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.mu.Lock()
	server := ws.server
	ws.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// handleHealth returns server health. The status degrades when the last poll had failing sections
// or the health check fails.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	pollInfo := map[string]interface{}{
		"identity":       ws.cfg.Dashboard.Identity(),
		"last_poll_id":   nil,
		"last_poll_at":   nil,
		"section_errors": 0,
	}
	if snap, ok := ws.cfg.Dashboard.Snapshot(); ok {
		pollInfo["last_poll_id"] = snap.PollID
		pollInfo["last_poll_at"] = snap.CompletedAt
		pollInfo["section_errors"] = len(snap.Errors)
		hasErrors = len(snap.Errors) > 0
	}

	sourceHealthy := true
	if ws.cfg.HealthCheck != nil {
		if err := ws.cfg.HealthCheck(); err != nil {
			webLogger.Warn().Err(err).Msg("Health check failed")
			sourceHealthy = false
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "gpcore",
			"version": "1.0.0",
		},
		"tracker_status": map[string]interface{}{
			"source_healthy": sourceHealthy,
			"poll_info":      pollInfo,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}
	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) snapshot(w http.ResponseWriter) (types.DashboardSnapshot, bool) {
	if ws.cfg.Dashboard.Identity() == "" {
		ws.writeErrorResponse(w, http.StatusNotFound, "No identity is being tracked")
		return types.DashboardSnapshot{}, false
	}
	snap, ok := ws.cfg.Dashboard.Snapshot()
	if !ok {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "First poll has not completed yet")
		return types.DashboardSnapshot{}, false
	}
	return snap, true
}

// handleGetDashboard returns the latest complete snapshot
func (ws *WebServer) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := ws.snapshot(w)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snap)
}

// handleGetPositions returns the positions of the latest snapshot, newest first
func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	snap, ok := ws.snapshot(w)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"poll_id":   snap.PollID,
		"positions": snap.Positions,
		"count":     len(snap.Positions),
	})
}

// eligibilityRow is a tier result with amounts rendered in whole currency units.
type eligibilityRow struct {
	types.TierResult
	RequiredValueDisplay string `json:"required_value_display"`
}

// handleGetEligibility returns the tier ladder of the latest snapshot
func (ws *WebServer) handleGetEligibility(w http.ResponseWriter, r *http.Request) {
	snap, ok := ws.snapshot(w)
	if !ok {
		return
	}
	if snap.Eligibility == nil {
		ws.writeErrorResponse(w, http.StatusBadGateway, "Eligibility data unavailable")
		return
	}

	decimals := ws.cfg.Parameters.CurrencyDecimals
	invested, err := utils.FormatUnits(snap.Eligibility.Standing.ValueInvested, decimals)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to format invested value")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to format eligibility")
		return
	}
	rows := make([]eligibilityRow, len(snap.Eligibility.Results))
	for i, result := range snap.Eligibility.Results {
		display, err := utils.FormatUnits(result.RequiredValue, decimals)
		if err != nil {
			webLogger.Error().Err(err).Int("level", result.Level).Msg("Failed to format tier value")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to format eligibility")
			return
		}
		rows[i] = eligibilityRow{TierResult: result, RequiredValueDisplay: display}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"poll_id":                snap.PollID,
		"directs_quantity":       snap.Eligibility.Standing.DirectsQuantity,
		"value_invested":         snap.Eligibility.Standing.ValueInvested,
		"value_invested_display": invested,
		"tiers":                  rows,
		"anomalies":              snap.Eligibility.Anomalies,
	})
}

type identityRequest struct {
	Identity string `json:"identity"`
}

// handlePutIdentity switches the tracked identity, mounts its referral tree and triggers a poll
func (ws *WebServer) handlePutIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ws.identityMu.Lock()
	defer ws.identityMu.Unlock()

	identity, err := ws.cfg.Dashboard.SetIdentity(req.Identity)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := ws.cfg.Dashboard.RunCycle(ctx); err != nil {
			webLogger.Debug().Err(err).Msg("Poll after identity change did not apply")
		}
	}()

	response := map[string]interface{}{
		"identity": identity,
	}
	if _, err := ws.cfg.Network.Switch(r.Context(), identity); err != nil {
		webLogger.Warn().Err(err).Str("identity", identity).Msg("Referral root failed to load")
		response["network_error"] = err.Error()
	}
	if view, err := ws.cfg.Network.View(); err == nil {
		response["network"] = view
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetNetwork returns the referral tree and the running affiliate total
func (ws *WebServer) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	view, err := ws.cfg.Network.View()
	if err != nil {
		ws.writeNetworkError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

func (ws *WebServer) handleExpandNode(w http.ResponseWriter, r *http.Request) {
	path, err := referral.ParsePath(r.URL.Query().Get("path"))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.cfg.Network.Expand(r.Context(), path); err != nil {
		ws.writeNetworkError(w, err)
		return
	}
	ws.handleGetNetwork(w, r)
}

func (ws *WebServer) handleCollapseNode(w http.ResponseWriter, r *http.Request) {
	path, err := referral.ParsePath(r.URL.Query().Get("path"))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.cfg.Network.Collapse(path); err != nil {
		ws.writeNetworkError(w, err)
		return
	}
	ws.handleGetNetwork(w, r)
}

func (ws *WebServer) handleResetNetwork(w http.ResponseWriter, r *http.Request) {
	if _, err := ws.cfg.Network.Reset(r.Context()); err != nil {
		ws.writeNetworkError(w, err)
		return
	}
	ws.handleGetNetwork(w, r)
}

// writeNetworkError maps referral errors to status codes
func (ws *WebServer) writeNetworkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, referral.ErrNoIdentity):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, referral.ErrNodeNotFound), errors.Is(err, referral.ErrInvalidPath):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, referral.ErrStaleResult), errors.Is(err, referral.ErrTreeClosed):
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrFetchFailure):
		ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		webLogger.Error().Err(err).Msg("Referral network request failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Referral network request failed")
	}
}

// handleGetQuote prices a purchase of shares, given either a share quantity or a
// whole-unit budget ("amount=25.5") that is spent on as many shares as it covers
func (ws *WebServer) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	quantityStr, amountStr := query.Get("quantity"), query.Get("amount")
	if quantityStr != "" && amountStr != "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Use either quantity or amount")
		return
	}

	quantity := int64(1)
	switch {
	case quantityStr != "":
		parsed, err := strconv.ParseInt(quantityStr, 10, 64)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid quantity")
			return
		}
		quantity = parsed
	case amountStr != "":
		amount, err := utils.ParseUnits(amountStr, ws.cfg.Parameters.CurrencyDecimals)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount: "+err.Error())
			return
		}
		shares, err := actions.SharesForAmount(amount, ws.cfg.Parameters.ShareValue, ws.cfg.Parameters.CurrencyDecimals)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		quantity = shares
	}

	quote, err := actions.QuotePurchase(quantity, ws.cfg.Parameters.ShareValue, ws.cfg.Parameters.CurrencyDecimals)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to quote purchase")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to quote purchase")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
