package datafetcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalpool/gpcore/internal/types"
)

const (
	alice = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	bob   = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
	carol = "0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb"
)

func normalized(t *testing.T, identity string) string {
	t.Helper()
	n, err := types.NormalizeIdentity(identity)
	require.NoError(t, err)
	return n
}

func TestLoadFixture(t *testing.T) {
	src, err := LoadFixture("testdata/pool.yaml")
	require.NoError(t, err)
	ctx := context.Background()

	ids, err := src.GetUserPositionIDs(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []types.PositionID{1, 2, 3, 4}, ids)

	data, err := src.GetTickData(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, types.TickData{StartTick: 0, CurrentTick: 1500, UpperTick: 1000}, *data)

	missing, err := src.GetTickData(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)

	claimed, err := src.HasPositionClaimed(ctx, 4)
	require.NoError(t, err)
	assert.True(t, claimed)

	standing, err := src.GetUserStanding(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(5), standing.DirectsQuantity)
	assert.True(t, standing.ValueInvested.Equal(sdkmath.NewInt(12_000_000)))

	tiers, err := src.GetEligibilityTiers(ctx, alice)
	require.NoError(t, err)
	require.Len(t, tiers, types.TierCount)
	assert.True(t, tiers[0].IsEligible)
	assert.False(t, tiers[1].IsEligible)
	assert.True(t, tiers[14].RequiredValue.Equal(sdkmath.NewInt(150_000_000)))

	sponsor, err := src.GetSponsor(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, normalized(t, bob), sponsor)

	registered, err := src.IsRegistered(ctx, carol)
	require.NoError(t, err)
	assert.False(t, registered)

	children, err := src.GetReferralChildren(ctx, bob)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.True(t, children[0].HasIdentity())
	assert.False(t, children[1].HasIdentity())

	none, err := src.GetReferralChildren(ctx, carol)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	tvl, err := src.GetTotalValueLocked(ctx)
	require.NoError(t, err)
	assert.True(t, tvl.Equal(sdkmath.NewInt(1_250_000_000)))
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func fixtureYAML(tiers int, users string) string {
	var b strings.Builder
	b.WriteString("pool:\n  total_value_locked: \"100\"\ntiers:\n")
	for i := 1; i <= tiers; i++ {
		fmt.Fprintf(&b, "  - {level: %d, required_directs: %d, required_value: \"%d\"}\n", i, i, i*1000)
	}
	b.WriteString(users)
	return b.String()
}

func TestParseFixtureRejectsInvalidData(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "pool: [unterminated"},
		{"too few tiers", fixtureYAML(14, "")},
		{"bad pool amount", strings.Replace(fixtureYAML(15, ""), "\"100\"", "\"1.5\"", 1)},
		{"negative requirement", strings.Replace(fixtureYAML(15, ""), "\"1000\"", "\"-1000\"", 1)},
		{"bad identity", fixtureYAML(15, "users:\n  - identity: \"0x12\"\n")},
		{"bad sponsor", fixtureYAML(15, "users:\n  - identity: \""+alice+"\"\n    sponsor: \"nobody\"\n")},
		{"tick out of bounds", fixtureYAML(15, "users:\n  - identity: \""+alice+"\"\n    positions: [{id: 1, tick: {start_tick: 0, current_tick: 10, upper_tick: 9223372036854775807}}]\n")},
		{"duplicate position", fixtureYAML(15, "users:\n  - identity: \""+alice+"\"\n    positions: [{id: 1}]\n  - identity: \""+bob+"\"\n    positions: [{id: 1}]\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := ParseFixture([]byte(fixtureYAML(13, "")))
	assert.ErrorIs(t, err, types.ErrInvalidTierTable)
}

func TestMemorySourceReturnsCopies(t *testing.T) {
	src := NewMemorySource()
	ctx := context.Background()
	src.SetPositions(alice, 1, 2)
	src.SetReferrals(alice, types.ReferralSlot{Identity: bob})

	ids, err := src.GetUserPositionIDs(ctx, alice)
	require.NoError(t, err)
	ids[0] = 99
	again, err := src.GetUserPositionIDs(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []types.PositionID{1, 2}, again)

	children, err := src.GetReferralChildren(ctx, alice)
	require.NoError(t, err)
	children[0].Identity = carol
	again2, err := src.GetReferralChildren(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, bob, again2[0].Identity)
}

func TestMemorySourceMatchesNormalizedIdentity(t *testing.T) {
	src := NewMemorySource()
	src.SetPositions(alice, 7)

	ids, err := src.GetUserPositionIDs(context.Background(), normalized(t, alice))
	require.NoError(t, err)
	assert.Equal(t, []types.PositionID{7}, ids)
}

func TestMemorySourceBoundaryValidation(t *testing.T) {
	src := NewMemorySource()
	ctx := context.Background()

	standing, err := src.GetUserStanding(ctx, alice)
	require.NoError(t, err)
	assert.True(t, standing.ValueInvested.IsZero())

	_, err = src.GetEligibilityTiers(ctx, alice)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)

	src.SetTiers(alice, make([]types.EligibilityTier, 3))
	_, err = src.GetEligibilityTiers(ctx, alice)
	assert.ErrorIs(t, err, types.ErrInvalidTierTable)

	src.SetStanding(bob, types.UserStanding{DirectsQuantity: 1, ValueInvested: sdkmath.NewInt(-1)})
	_, err = src.GetUserStanding(ctx, bob)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)

	tvl, err := src.GetTotalValueLocked(ctx)
	require.NoError(t, err)
	assert.True(t, tvl.IsZero())
}

func TestNormalizeTiersFillsNilValues(t *testing.T) {
	tiers := make([]types.EligibilityTier, types.TierCount)
	for i := range tiers {
		tiers[i].Level = i + 1
	}
	out, err := NormalizeTiers(tiers)
	require.NoError(t, err)
	for _, tier := range out {
		assert.False(t, tier.RequiredValue.IsNil())
		assert.True(t, tier.RequiredValue.IsZero())
	}
	assert.True(t, tiers[0].RequiredValue.IsNil(), "input must not be modified")
}

func TestReadFixture(t *testing.T) {
	fixture, err := ReadFixture("testdata/pool.yaml")
	require.NoError(t, err)
	assert.Len(t, fixture.Tiers, types.TierCount)
	assert.Equal(t, "1250000000", fixture.Pool.TotalValueLocked)
	require.Len(t, fixture.Users, 3)
	assert.Len(t, fixture.Users[0].Positions, 4)
}

func TestNormalizeTickData(t *testing.T) {
	got, err := NormalizeTickData(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	edge := &types.TickData{StartTick: types.MinTick, CurrentTick: 0, UpperTick: types.MaxTick}
	got, err = NormalizeTickData(edge)
	require.NoError(t, err)
	assert.Equal(t, edge, got)

	_, err = NormalizeTickData(&types.TickData{StartTick: math.MinInt64, CurrentTick: 0, UpperTick: 10})
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
	_, err = NormalizeTickData(&types.TickData{StartTick: 0, CurrentTick: 0, UpperTick: types.MaxTick + 1})
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}
