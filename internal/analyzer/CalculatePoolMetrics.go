package analyzer

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/globalpool/gpcore/internal/types"
	"github.com/globalpool/gpcore/internal/utils"
)

// ErrInvalidShareValue indicates a non-positive share value.
var ErrInvalidShareValue = errors.New("share value must be positive")

// CalculatePoolMetrics derives the number of shares sold from the total value locked.
// tvl is in smallest units, shareValue in whole units.
func CalculatePoolMetrics(tvl sdkmath.Int, shareValue int64, decimals int) (types.PoolMetrics, error) {
	if shareValue <= 0 {
		return types.PoolMetrics{}, ErrInvalidShareValue
	}
	price, err := utils.WholeUnitsToInt(shareValue, decimals)
	if err != nil {
		return types.PoolMetrics{}, err
	}
	tvl = utils.OrZero(tvl)
	return types.PoolMetrics{
		TotalValueLocked: tvl,
		SharesSold:       sdkmath.LegacyNewDecFromInt(tvl).QuoInt(price),
	}, nil
}
