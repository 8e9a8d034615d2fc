package analyzer

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/globalpool/gpcore/internal/types"
	"github.com/globalpool/gpcore/internal/utils"
)

// EvaluateEligibility checks a standing against the full tier ladder.
//
// The pool's IsEligible flag is copied verbatim; the directs/value breakdown is
// recomputed locally and any contradiction is returned as an anomaly. Every tier
// is evaluated, in ascending level order, whatever order the table arrived in.
func EvaluateEligibility(standing types.UserStanding, tiers []types.EligibilityTier) (types.EligibilityReport, error) {
	ordered, err := orderTiers(tiers)
	if err != nil {
		return types.EligibilityReport{}, err
	}

	invested := utils.OrZero(standing.ValueInvested)
	report := types.EligibilityReport{
		Standing: types.UserStanding{DirectsQuantity: standing.DirectsQuantity, ValueInvested: invested},
		Results:  make([]types.TierResult, 0, types.TierCount),
	}

	for _, tier := range ordered {
		required := utils.OrZero(tier.RequiredValue)
		result := types.TierResult{
			Level:           tier.Level,
			RequiredDirects: tier.RequiredDirects,
			RequiredValue:   required,
			MeetsDirects:    standing.DirectsQuantity >= tier.RequiredDirects,
			MeetsValue:      invested.GTE(required),
			IsEligible:      tier.IsEligible,
		}
		result.Consistent = isConsistent(result)
		if !result.Consistent {
			report.Anomalies = append(report.Anomalies, &types.EligibilityAnomaly{
				Level:        result.Level,
				IsEligible:   result.IsEligible,
				MeetsDirects: result.MeetsDirects,
				MeetsValue:   result.MeetsValue,
			})
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}

// isConsistent flags only the two clear contradictions. A single failed check next
// to an eligible flag is left alone: the pool may apply rules we cannot see.
func isConsistent(r types.TierResult) bool {
	if r.IsEligible && !r.MeetsDirects && !r.MeetsValue {
		return false
	}
	if !r.IsEligible && r.MeetsDirects && r.MeetsValue {
		return false
	}
	return true
}

// orderTiers returns a copy sorted by level and checks that levels 1..TierCount each appear once.
func orderTiers(tiers []types.EligibilityTier) ([]types.EligibilityTier, error) {
	if len(tiers) != types.TierCount {
		return nil, fmt.Errorf("%w: expected %d tiers, got %d", types.ErrInvalidTierTable, types.TierCount, len(tiers))
	}

	ordered := make([]types.EligibilityTier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Level < ordered[j].Level
	})

	for i, tier := range ordered {
		if tier.Level != i+1 {
			return nil, fmt.Errorf("%w: missing or duplicate level %d", types.ErrInvalidTierTable, i+1)
		}
		if tier.RequiredDirects < 0 || (!tier.RequiredValue.IsNil() && tier.RequiredValue.IsNegative()) {
			return nil, fmt.Errorf("%w: negative requirement at level %d", types.ErrInvalidTierTable, tier.Level)
		}
	}
	return ordered, nil
}

// TiersFromTable builds a tier table from the three parallel arrays the pool contract returns.
func TiersFromTable(isEligible []bool, directs []int64, values []sdkmath.Int) ([]types.EligibilityTier, error) {
	if len(isEligible) != types.TierCount || len(directs) != types.TierCount || len(values) != types.TierCount {
		return nil, fmt.Errorf("%w: table arrays have lengths %d/%d/%d", types.ErrInvalidTierTable,
			len(isEligible), len(directs), len(values))
	}
	tiers := make([]types.EligibilityTier, types.TierCount)
	for i := range tiers {
		tiers[i] = types.EligibilityTier{
			Level:           i + 1,
			RequiredDirects: directs[i],
			RequiredValue:   utils.OrZero(values[i]),
			IsEligible:      isEligible[i],
		}
	}
	return tiers, nil
}
