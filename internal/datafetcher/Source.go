/*

This file contains the capability interfaces the analytics core consumes.

Implementations read facts the pool has already computed: tick boundaries, user
standings, eligibility tables and referral edges. The core never writes through them.

*/

package datafetcher

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/globalpool/gpcore/internal/types"
	"github.com/globalpool/gpcore/internal/utils"
)

// PositionSource resolves the positions of a user.
type PositionSource interface {
	// GetUserPositionIDs returns position ids in the order the pool stores them, oldest first.
	GetUserPositionIDs(ctx context.Context, identity string) ([]types.PositionID, error)
	// GetTickData returns nil without error when the position has no resolvable tick data.
	GetTickData(ctx context.Context, id types.PositionID) (*types.TickData, error)
	HasPositionClaimed(ctx context.Context, id types.PositionID) (bool, error)
}

// StandingSource resolves what the eligibility ladder is evaluated against.
type StandingSource interface {
	GetUserStanding(ctx context.Context, identity string) (types.UserStanding, error)
	GetEligibilityTiers(ctx context.Context, identity string) ([]types.EligibilityTier, error)
}

// ReferralSource resolves referral edges.
type ReferralSource interface {
	GetReferralChildren(ctx context.Context, identity string) ([]types.ReferralSlot, error)
}

// PoolSource resolves pool-wide figures.
type PoolSource interface {
	// GetTotalValueLocked returns the pool balance in smallest currency units.
	GetTotalValueLocked(ctx context.Context) (sdkmath.Int, error)
}

// ProgramSource resolves program membership.
type ProgramSource interface {
	// GetSponsor returns "" when the user has no sponsor.
	GetSponsor(ctx context.Context, identity string) (string, error)
	IsRegistered(ctx context.Context, identity string) (bool, error)
}

// Source is every capability a dashboard poll needs.
type Source interface {
	PositionSource
	StandingSource
	ReferralSource
	PoolSource
	ProgramSource
}

// NormalizeStanding replaces a nil invested value with zero and rejects negative figures.
func NormalizeStanding(standing types.UserStanding) (types.UserStanding, error) {
	standing.ValueInvested = utils.OrZero(standing.ValueInvested)
	if standing.DirectsQuantity < 0 {
		return types.UserStanding{}, fmt.Errorf("%w: negative directs quantity %d", types.ErrDataUnavailable, standing.DirectsQuantity)
	}
	if standing.ValueInvested.IsNegative() {
		return types.UserStanding{}, fmt.Errorf("%w: negative value invested", types.ErrDataUnavailable)
	}
	return standing, nil
}

// NormalizeTickData rejects tick triples outside the pool's tick bounds. Nil passes through.
func NormalizeTickData(data *types.TickData) (*types.TickData, error) {
	if data == nil || data.InRange() {
		return data, nil
	}
	return nil, fmt.Errorf("%w: ticks %d/%d/%d outside [%d, %d]", types.ErrDataUnavailable,
		data.StartTick, data.CurrentTick, data.UpperTick, types.MinTick, types.MaxTick)
}

// NormalizeTiers checks the tier table has exactly TierCount entries and replaces nil values with zero.
// The returned slice is a copy.
func NormalizeTiers(tiers []types.EligibilityTier) ([]types.EligibilityTier, error) {
	if len(tiers) != types.TierCount {
		return nil, fmt.Errorf("%w: expected %d tiers, got %d", types.ErrInvalidTierTable, types.TierCount, len(tiers))
	}
	out := make([]types.EligibilityTier, len(tiers))
	for i, tier := range tiers {
		tier.RequiredValue = utils.OrZero(tier.RequiredValue)
		out[i] = tier
	}
	return out, nil
}
