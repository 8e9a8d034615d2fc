/*

This file contains the pool-wide figures shown next to a user's positions.

*/

package types

import (
	"cosmossdk.io/math"
)

// PoolMetrics is the pool summary refreshed on every poll.
type PoolMetrics struct {
	TotalValueLocked math.Int       `json:"total_value_locked"` // In smallest currency units (USDT, 6 decimals)
	SharesSold       math.LegacyDec `json:"shares_sold"`        // TotalValueLocked divided by the share value
}
