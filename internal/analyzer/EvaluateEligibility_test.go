package analyzer

import (
	"errors"
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalpool/gpcore/internal/types"
)

// ladder builds levels 1..15 where level n needs n directs and n*1_000_000 units.
func ladder(eligible func(level int) bool) []types.EligibilityTier {
	tiers := make([]types.EligibilityTier, types.TierCount)
	for i := range tiers {
		level := i + 1
		tiers[i] = types.EligibilityTier{
			Level:           level,
			RequiredDirects: int64(level),
			RequiredValue:   sdkmath.NewInt(int64(level) * 1_000_000),
			IsEligible:      eligible(level),
		}
	}
	return tiers
}

func TestEvaluateEligibilityExample(t *testing.T) {
	tiers := ladder(func(level int) bool { return level <= 5 })
	tiers[2].RequiredDirects = 3
	tiers[2].RequiredValue = sdkmath.NewInt(10_000_000)
	tiers[2].IsEligible = true

	standing := types.UserStanding{DirectsQuantity: 5, ValueInvested: sdkmath.NewInt(12_000_000)}
	report, err := EvaluateEligibility(standing, tiers)
	require.NoError(t, err)
	require.Len(t, report.Results, types.TierCount)

	third := report.Results[2]
	assert.Equal(t, 3, third.Level)
	assert.True(t, third.MeetsDirects)
	assert.True(t, third.MeetsValue)
	assert.True(t, third.IsEligible)
	assert.True(t, third.Consistent)
	assert.Empty(t, report.Anomalies)
}

func TestEvaluateEligibilityOrdersShuffledInput(t *testing.T) {
	tiers := ladder(func(level int) bool { return false })
	rand.New(rand.NewSource(3)).Shuffle(len(tiers), func(i, j int) { tiers[i], tiers[j] = tiers[j], tiers[i] })
	firstBefore := tiers[0].Level

	report, err := EvaluateEligibility(types.UserStanding{}, tiers)
	require.NoError(t, err)
	require.Len(t, report.Results, types.TierCount)
	for i, r := range report.Results {
		assert.Equal(t, i+1, r.Level)
	}
	assert.Equal(t, firstBefore, tiers[0].Level, "input must not be reordered")
}

func TestEvaluateEligibilityKeepsPoolFlag(t *testing.T) {
	tiers := ladder(func(level int) bool { return level == 1 || level == 9 })
	standing := types.UserStanding{DirectsQuantity: 2, ValueInvested: sdkmath.NewInt(2_000_000)}

	report, err := EvaluateEligibility(standing, tiers)
	require.NoError(t, err)

	assert.True(t, report.Results[0].IsEligible)
	assert.True(t, report.Results[0].Consistent)

	// Level 2 passes both checks but the pool says no.
	assert.False(t, report.Results[1].IsEligible)
	assert.False(t, report.Results[1].Consistent)

	// Level 9 fails both checks but the pool says yes.
	assert.True(t, report.Results[8].IsEligible)
	assert.False(t, report.Results[8].Consistent)

	require.Len(t, report.Anomalies, 2)
	assert.Equal(t, 2, report.Anomalies[0].Level)
	assert.Equal(t, 9, report.Anomalies[1].Level)
	assert.True(t, errors.Is(report.Anomalies[0], types.ErrInconsistentEligibility))
}

func TestEvaluateEligibilitySingleFailedCheckIsNotAnomaly(t *testing.T) {
	tiers := ladder(func(level int) bool { return level == 4 })
	// Enough directs, not enough value.
	standing := types.UserStanding{DirectsQuantity: 10, ValueInvested: sdkmath.NewInt(3_999_999)}

	report, err := EvaluateEligibility(standing, tiers)
	require.NoError(t, err)
	r := report.Results[3]
	assert.True(t, r.MeetsDirects)
	assert.False(t, r.MeetsValue)
	assert.True(t, r.Consistent)
}

func TestEvaluateEligibilityThresholdsAreInclusive(t *testing.T) {
	tiers := ladder(func(level int) bool { return level <= 7 })
	standing := types.UserStanding{DirectsQuantity: 7, ValueInvested: sdkmath.NewInt(7_000_000)}

	report, err := EvaluateEligibility(standing, tiers)
	require.NoError(t, err)
	assert.True(t, report.Results[6].MeetsDirects)
	assert.True(t, report.Results[6].MeetsValue)
	assert.False(t, report.Results[7].MeetsDirects)
	assert.False(t, report.Results[7].MeetsValue)
	assert.Empty(t, report.Anomalies)
}

func TestEvaluateEligibilityNilValueInvested(t *testing.T) {
	tiers := ladder(func(level int) bool { return false })
	tiers[0].RequiredValue = sdkmath.ZeroInt()

	report, err := EvaluateEligibility(types.UserStanding{DirectsQuantity: 0}, tiers)
	require.NoError(t, err)
	assert.True(t, report.Standing.ValueInvested.IsZero())
	assert.True(t, report.Results[0].MeetsValue)
	assert.False(t, report.Results[1].MeetsValue)
}

func TestEvaluateEligibilityRejectsBadTables(t *testing.T) {
	tests := []struct {
		name  string
		tiers func() []types.EligibilityTier
	}{
		{"too few", func() []types.EligibilityTier { return ladder(func(int) bool { return false })[:14] }},
		{"duplicate level", func() []types.EligibilityTier {
			tiers := ladder(func(int) bool { return false })
			tiers[14].Level = 14
			return tiers
		}},
		{"level out of range", func() []types.EligibilityTier {
			tiers := ladder(func(int) bool { return false })
			tiers[0].Level = 16
			return tiers
		}},
		{"negative directs", func() []types.EligibilityTier {
			tiers := ladder(func(int) bool { return false })
			tiers[5].RequiredDirects = -1
			return tiers
		}},
		{"negative value", func() []types.EligibilityTier {
			tiers := ladder(func(int) bool { return false })
			tiers[5].RequiredValue = sdkmath.NewInt(-5)
			return tiers
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateEligibility(types.UserStanding{}, tt.tiers())
			assert.ErrorIs(t, err, types.ErrInvalidTierTable)
		})
	}
}

func TestTiersFromTable(t *testing.T) {
	eligible := make([]bool, types.TierCount)
	directs := make([]int64, types.TierCount)
	values := make([]sdkmath.Int, types.TierCount)
	for i := range eligible {
		eligible[i] = i%2 == 0
		directs[i] = int64(i * 2)
		if i != 4 {
			values[i] = sdkmath.NewInt(int64(i) * 500)
		}
	}

	tiers, err := TiersFromTable(eligible, directs, values)
	require.NoError(t, err)
	require.Len(t, tiers, types.TierCount)
	assert.Equal(t, 1, tiers[0].Level)
	assert.Equal(t, 15, tiers[14].Level)
	assert.Equal(t, int64(6), tiers[3].RequiredDirects)
	assert.True(t, tiers[4].RequiredValue.IsZero())
	assert.True(t, tiers[2].IsEligible)

	_, err = TiersFromTable(eligible[:3], directs, values)
	assert.ErrorIs(t, err, types.ErrInvalidTierTable)
}
