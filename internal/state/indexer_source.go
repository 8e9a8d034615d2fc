package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"

	"github.com/globalpool/gpcore/internal/analyzer"
	"github.com/globalpool/gpcore/internal/datafetcher"
	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/types"
)

var indexerLogger = logger.GetForComponent("indexer_source")

// IndexerSource reads pool facts from the indexer database.
// Identities are compared case-insensitively since the indexer stores them as emitted.
type IndexerSource struct {
	db *sql.DB
}

var _ datafetcher.Source = (*IndexerSource)(nil)

// NewIndexerSource creates a source over db. Pass state.DB after InitDB.
func NewIndexerSource(db *sql.DB) (*IndexerSource, error) {
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	return &IndexerSource{db: db}, nil
}

func (s *IndexerSource) GetUserPositionIDs(ctx context.Context, identity string) ([]types.PositionID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position_id FROM positions WHERE LOWER(owner) = LOWER($1) ORDER BY position_id ASC`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	ids := []types.PositionID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan position id: %w", err)
		}
		if id < 0 {
			return nil, fmt.Errorf("%w: negative position id %d", types.ErrDataUnavailable, id)
		}
		ids = append(ids, types.PositionID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	return ids, nil
}

func (s *IndexerSource) GetTickData(ctx context.Context, id types.PositionID) (*types.TickData, error) {
	var d types.TickData
	err := s.db.QueryRowContext(ctx,
		`SELECT start_tick, current_tick, upper_tick FROM tick_data WHERE position_id = $1`, int64(id),
	).Scan(&d.StartTick, &d.CurrentTick, &d.UpperTick)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tick data: %w", err)
	}
	return datafetcher.NormalizeTickData(&d)
}

func (s *IndexerSource) HasPositionClaimed(ctx context.Context, id types.PositionID) (bool, error) {
	var claimed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM position_claims WHERE position_id = $1)`, int64(id),
	).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to query position claim: %w", err)
	}
	return claimed, nil
}

// GetUserStanding returns a zero standing for users the indexer has not seen.
func (s *IndexerSource) GetUserStanding(ctx context.Context, identity string) (types.UserStanding, error) {
	var (
		directs  int64
		invested string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT directs_quantity, value_invested::TEXT FROM user_standings WHERE LOWER(identity) = LOWER($1)`, identity,
	).Scan(&directs, &invested)
	if errors.Is(err, sql.ErrNoRows) {
		return types.UserStanding{DirectsQuantity: 0, ValueInvested: sdkmath.ZeroInt()}, nil
	}
	if err != nil {
		return types.UserStanding{}, fmt.Errorf("failed to query user standing: %w", err)
	}

	value, err := parseNumeric(invested)
	if err != nil {
		return types.UserStanding{}, fmt.Errorf("value_invested: %w", err)
	}
	return datafetcher.NormalizeStanding(types.UserStanding{DirectsQuantity: directs, ValueInvested: value})
}

func (s *IndexerSource) GetEligibilityTiers(ctx context.Context, identity string) ([]types.EligibilityTier, error) {
	var (
		eligible []bool
		directs  []int64
		values   []string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT is_eligible, required_directs, required_values::TEXT[] FROM eligibility_tables WHERE LOWER(identity) = LOWER($1)`,
		identity,
	).Scan(pq.Array(&eligible), pq.Array(&directs), pq.Array(&values))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no eligibility table for %s", types.ErrDataUnavailable, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query eligibility table: %w", err)
	}

	amounts := make([]sdkmath.Int, len(values))
	for i, v := range values {
		if amounts[i], err = parseNumeric(v); err != nil {
			return nil, fmt.Errorf("required_values[%d]: %w", i, err)
		}
	}
	tiers, err := analyzer.TiersFromTable(eligible, directs, amounts)
	if err != nil {
		return nil, err
	}
	return datafetcher.NormalizeTiers(tiers)
}

// GetReferralChildren returns the referral slots of identity in slot order. NULL marks an unfilled slot.
func (s *IndexerSource) GetReferralChildren(ctx context.Context, identity string) ([]types.ReferralSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT referral FROM referrals WHERE LOWER(sponsor) = LOWER($1) ORDER BY slot_index ASC`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer rows.Close()

	slots := []types.ReferralSlot{}
	for rows.Next() {
		var referral sql.NullString
		if err := rows.Scan(&referral); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		slots = append(slots, types.ReferralSlot{Identity: referral.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read referrals: %w", err)
	}
	indexerLogger.Debug().Str("sponsor", types.ShortIdentity(identity)).Int("slots", len(slots)).Msg("Fetched referral slots")
	return slots, nil
}

func (s *IndexerSource) GetTotalValueLocked(ctx context.Context) (sdkmath.Int, error) {
	var tvl string
	err := s.db.QueryRowContext(ctx, `SELECT total_value_locked::TEXT FROM pool_metrics WHERE id = 1`).Scan(&tvl)
	if errors.Is(err, sql.ErrNoRows) {
		return sdkmath.ZeroInt(), nil
	}
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to query pool metrics: %w", err)
	}
	return parseNumeric(tvl)
}

func (s *IndexerSource) GetSponsor(ctx context.Context, identity string) (string, error) {
	var sponsor sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT sponsor FROM user_standings WHERE LOWER(identity) = LOWER($1)`, identity,
	).Scan(&sponsor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query sponsor: %w", err)
	}
	if types.IsEmptyIdentity(sponsor.String) {
		return "", nil
	}
	return sponsor.String, nil
}

func (s *IndexerSource) IsRegistered(ctx context.Context, identity string) (bool, error) {
	var registered bool
	err := s.db.QueryRowContext(ctx,
		`SELECT registered FROM user_standings WHERE LOWER(identity) = LOWER($1)`, identity,
	).Scan(&registered)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query registration: %w", err)
	}
	return registered, nil
}

// parseNumeric parses a NUMERIC(78, 0) rendered as text.
func parseNumeric(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: invalid numeric %q", types.ErrDataUnavailable, s)
	}
	return v, nil
}
