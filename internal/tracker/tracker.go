package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/globalpool/gpcore/internal/actions"
	"github.com/globalpool/gpcore/internal/analyzer"
	"github.com/globalpool/gpcore/internal/datafetcher"
	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/metrics"
	"github.com/globalpool/gpcore/internal/types"
)

var (
	ErrNoIdentity = errors.New("no identity is being tracked")
	// ErrSuperseded is returned by RunCycle when a newer poll or an identity change won the race.
	ErrSuperseded = errors.New("poll superseded")
)

// Tracker polls the dashboard data of one identity and keeps the latest complete snapshot.
type Tracker struct {
	// Core dependencies
	logger    zerolog.Logger
	source    datafetcher.Source
	evaluator *analyzer.PositionEvaluator
	metrics   *metrics.Metrics

	// Configuration
	params types.Parameters
	origin string

	// Runtime state
	cycleCount int
	sequence   atomic.Uint64

	mu         sync.RWMutex
	identity   string
	generation uint64 // bumped on every identity change
	applied    uint64 // sequence of the snapshot in use
	snapshot   *types.DashboardSnapshot
}

// Config holds the configuration for creating a new Tracker
type Config struct {
	Source         datafetcher.Source
	Parameters     types.Parameters
	Metrics        *metrics.Metrics // optional
	ReferralOrigin string           // optional, base URL of referral links
}

// New creates a tracker with no identity.
func New(cfg Config) (*Tracker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("tracker configuration validation failed: %w", err)
	}
	evaluator, err := analyzer.NewPositionEvaluator(cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("tracker configuration validation failed: %w", err)
	}

	t := &Tracker{
		logger:    logger.GetForComponent("tracker"),
		source:    cfg.Source,
		evaluator: evaluator,
		metrics:   cfg.Metrics,
		params:    cfg.Parameters,
		origin:    cfg.ReferralOrigin,
	}
	t.logger.Info().
		Dur("pollInterval", cfg.Parameters.PollInterval).
		Int("fetchConcurrency", cfg.Parameters.PositionFetchConcurrency).
		Msg("Tracker created")
	return t, nil
}

func validateConfig(cfg Config) error {
	if cfg.Source == nil {
		return fmt.Errorf("data source cannot be nil")
	}
	if cfg.Parameters.PositionFetchConcurrency <= 0 {
		return fmt.Errorf("position fetch concurrency must be positive")
	}
	if cfg.Parameters.ShareValue <= 0 {
		return fmt.Errorf("share value must be positive")
	}
	return nil
}

// SetIdentity switches the tracked identity. A different identity drops the current
// snapshot and makes every poll still in flight stale.
func (t *Tracker) SetIdentity(identity string) (string, error) {
	normalized, err := types.NormalizeIdentity(identity)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if normalized == t.identity {
		return normalized, nil
	}
	t.identity = normalized
	t.generation++
	t.snapshot = nil
	t.applied = 0
	t.logger.Info().Str("identity", normalized).Msg("Tracking new identity")
	return normalized, nil
}

// Identity returns the tracked identity, "" when none.
func (t *Tracker) Identity() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.identity
}

// Snapshot returns the latest applied snapshot. Snapshots are never mutated once applied.
func (t *Tracker) Snapshot() (types.DashboardSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snapshot == nil {
		return types.DashboardSnapshot{}, false
	}
	return *t.snapshot, true
}

// RunLoop polls immediately and then on every tick until ctx is done.
func (t *Tracker) RunLoop(ctx context.Context, interval time.Duration) {
	t.logger.Info().
		Dur("interval", interval).
		Msg("Starting tracker loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Tracker loop stopped due to context cancellation")
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.cycleCount++
	err := t.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoIdentity):
		t.logger.Debug().Int("cycle", t.cycleCount).Msg("No identity to poll")
	case errors.Is(err, ErrSuperseded):
		t.logger.Debug().Int("cycle", t.cycleCount).Msg("Poll result discarded")
	default:
		t.logger.Error().Err(err).Int("cycle", t.cycleCount).Msg("Poll failed")
	}
}

// RunCycle polls every section for the tracked identity and applies the result
// unless a newer poll was applied or the identity changed meanwhile.
func (t *Tracker) RunCycle(ctx context.Context) error {
	t.mu.RLock()
	identity, generation := t.identity, t.generation
	t.mu.RUnlock()
	if identity == "" {
		return ErrNoIdentity
	}

	seq := t.sequence.Add(1)
	pollID := uuid.New().String()
	pollLogger := t.logger.With().Str("poll_id", pollID).Uint64("seq", seq).Str("identity", types.ShortIdentity(identity)).Logger()
	pollLogger.Debug().Msg("--- Starting poll ---")

	snap := t.poll(ctx, pollLogger, identity)
	snap.PollID = pollID
	snap.Sequence = seq
	t.metrics.ObservePoll(snap.CompletedAt.Sub(snap.StartedAt))

	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.apply(&snap, generation) {
		t.metrics.StaleDiscarded(metrics.StalePoll)
		pollLogger.Debug().Msg("Discarded superseded poll")
		return ErrSuperseded
	}

	pollLogger.Info().
		Int("positions", len(snap.Positions)).
		Int("sectionErrors", len(snap.Errors)).
		Str("duration", snap.CompletedAt.Sub(snap.StartedAt).String()).
		Msg("Poll applied")
	return nil
}

func (t *Tracker) apply(snap *types.DashboardSnapshot, generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation || snap.Sequence <= t.applied {
		return false
	}
	t.snapshot = snap
	t.applied = snap.Sequence
	return true
}

// poll gathers every section concurrently. A failing section is recorded and never aborts the others.
func (t *Tracker) poll(ctx context.Context, pollLogger zerolog.Logger, identity string) types.DashboardSnapshot {
	snap := types.DashboardSnapshot{
		Identity:  identity,
		StartedAt: time.Now(),
	}
	if t.origin != "" {
		snap.ReferralURL = types.ReferralLink(t.origin, identity)
	}

	var (
		positionsErr, eligibilityErr, poolErr, programErr error
		g                                                 errgroup.Group
	)
	g.Go(func() error {
		snap.Positions, positionsErr = t.fetchPositions(ctx, pollLogger, identity)
		return nil
	})
	g.Go(func() error {
		snap.Eligibility, eligibilityErr = t.fetchEligibility(ctx, pollLogger, identity)
		return nil
	})
	g.Go(func() error {
		snap.Pool, poolErr = t.fetchPool(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Sponsor, snap.Registered, programErr = t.fetchProgram(ctx, identity)
		return nil
	})
	_ = g.Wait()

	for _, section := range []struct {
		name string
		err  error
	}{
		{"positions", positionsErr},
		{"eligibility", eligibilityErr},
		{"pool", poolErr},
		{"program", programErr},
	} {
		if section.err != nil {
			pollLogger.Error().Err(section.err).Str("section", section.name).Msg("Poll section failed")
			snap.Errors = append(snap.Errors, section.name+": "+section.err.Error())
		}
	}

	snap.CompletedAt = time.Now()
	return snap
}

// fetchPositions resolves every position of identity, newest first, with bounded concurrency.
// Failures are recorded on the position they concern.
func (t *Tracker) fetchPositions(ctx context.Context, pollLogger zerolog.Logger, identity string) ([]types.PositionView, error) {
	ids, err := t.source.GetUserPositionIDs(ctx, identity)
	if err != nil {
		t.metrics.FetchFailed("position_ids")
		return nil, types.NewFetchError("position_ids", identity, err)
	}

	ordered := slices.Clone(ids)
	slices.Reverse(ordered)

	views := make([]types.PositionView, len(ordered))
	var g errgroup.Group
	g.SetLimit(t.params.PositionFetchConcurrency)
	for i, id := range ordered {
		g.Go(func() error {
			views[i] = t.fetchPosition(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range views {
		if v.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		pollLogger.Warn().Int("failed", failed).Int("total", len(views)).Msg("Some positions could not be fetched")
	}
	return views, nil
}

func (t *Tracker) fetchPosition(ctx context.Context, id types.PositionID) types.PositionView {
	view := types.PositionView{
		Position: types.Position{ID: id},
		Progress: types.PositionProgress{Status: types.ProgressUnavailable},
		Actions:  []types.ActionType{},
	}
	subject := fmt.Sprintf("position %d", id)

	data, err := t.source.GetTickData(ctx, id)
	if err != nil {
		t.metrics.FetchFailed("tick_data")
		view.Error = types.NewFetchError("tick_data", subject, err).Error()
		return view
	}
	view.Data = data
	view.Progress = t.evaluator.Evaluate(view.Position)
	if !view.Progress.Available() {
		return view
	}

	claimed, err := t.source.HasPositionClaimed(ctx, id)
	if err != nil {
		t.metrics.FetchFailed("position_claimed")
		view.Error = types.NewFetchError("position_claimed", subject, err).Error()
		return view
	}
	view.Claimed = claimed
	view.Actions = actions.AvailableActions(view.Progress, claimed)
	return view
}

func (t *Tracker) fetchEligibility(ctx context.Context, pollLogger zerolog.Logger, identity string) (*types.EligibilityReport, error) {
	standing, err := t.source.GetUserStanding(ctx, identity)
	if err != nil {
		t.metrics.FetchFailed("user_standing")
		return nil, types.NewFetchError("user_standing", identity, err)
	}
	tiers, err := t.source.GetEligibilityTiers(ctx, identity)
	if err != nil {
		t.metrics.FetchFailed("eligibility_tiers")
		return nil, types.NewFetchError("eligibility_tiers", identity, err)
	}

	report, err := analyzer.EvaluateEligibility(standing, tiers)
	if err != nil {
		return nil, err
	}
	for _, anomaly := range report.Anomalies {
		pollLogger.Warn().Err(anomaly).Int("level", anomaly.Level).Msg("Eligibility flag contradicts requirements")
	}
	t.metrics.EligibilityAnomalies(len(report.Anomalies))
	return &report, nil
}

func (t *Tracker) fetchPool(ctx context.Context) (*types.PoolMetrics, error) {
	tvl, err := t.source.GetTotalValueLocked(ctx)
	if err != nil {
		t.metrics.FetchFailed("total_value_locked")
		return nil, types.NewFetchError("total_value_locked", "pool", err)
	}
	pool, err := analyzer.CalculatePoolMetrics(tvl, t.params.ShareValue, t.params.CurrencyDecimals)
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (t *Tracker) fetchProgram(ctx context.Context, identity string) (string, bool, error) {
	sponsor, err := t.source.GetSponsor(ctx, identity)
	if err != nil {
		t.metrics.FetchFailed("sponsor")
		return "", false, types.NewFetchError("sponsor", identity, err)
	}
	registered, err := t.source.IsRegistered(ctx, identity)
	if err != nil {
		t.metrics.FetchFailed("registration")
		return sponsor, false, types.NewFetchError("registration", identity, err)
	}
	return sponsor, registered, nil
}
