/*

This file contains the tunable constants of the analytics core.

*/

package types

import "time"

// Parameters holds the fixed-point conventions of the pool and the polling policy.
type Parameters struct {
	// --- Tick Price Model ---
	TickBase       string `json:"tick_base"`       // Geometric base of a tick, as a decimal string.
	PricePrecision int    `json:"price_precision"` // Significant digits kept by the price model.

	// --- Display ---
	PriceShiftExponent   int `json:"price_shift_exponent"`   // Prices are multiplied by 10^shift to match the pool's token decimals.
	PriceDisplayDecimals int `json:"price_display_decimals"` // Decimal places of rendered prices.
	CurrencyDecimals     int `json:"currency_decimals"`      // Decimal places of the smallest currency unit.

	// --- Program ---
	ShareValue int64 `json:"share_value"` // Price of one pool share in whole currency units.

	// --- Polling ---
	PollInterval             time.Duration `json:"poll_interval"`
	PositionFetchConcurrency int           `json:"position_fetch_concurrency"` // Parallel tick-data fetches per poll.
}
