package analyzer

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePoolMetrics(t *testing.T) {
	m, err := CalculatePoolMetrics(sdkmath.NewInt(1_250_000_000), 10, 6)
	require.NoError(t, err)
	assert.True(t, m.TotalValueLocked.Equal(sdkmath.NewInt(1_250_000_000)))
	assert.True(t, m.SharesSold.Equal(sdkmath.LegacyMustNewDecFromStr("125")), m.SharesSold.String())

	m, err = CalculatePoolMetrics(sdkmath.NewInt(15_000_000), 10, 6)
	require.NoError(t, err)
	assert.True(t, m.SharesSold.Equal(sdkmath.LegacyMustNewDecFromStr("1.5")), m.SharesSold.String())

	m, err = CalculatePoolMetrics(sdkmath.Int{}, 10, 6)
	require.NoError(t, err)
	assert.True(t, m.SharesSold.IsZero())
}

func TestCalculatePoolMetricsRejectsBadShareValue(t *testing.T) {
	_, err := CalculatePoolMetrics(sdkmath.NewInt(1), 0, 6)
	assert.ErrorIs(t, err, ErrInvalidShareValue)
	_, err = CalculatePoolMetrics(sdkmath.NewInt(1), -10, 6)
	assert.ErrorIs(t, err, ErrInvalidShareValue)
}
