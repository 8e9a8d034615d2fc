/*

This file contains the default parameters of the analytics core.

The fixed-point values mirror the conventions of the pool contract; changing them
changes how on-chain numbers are interpreted, not just how they are shown.

*/

package config

import (
	"time"

	"github.com/globalpool/gpcore/internal/types"
)

// DefaultParameters provides the baseline conventions used when nothing overrides them.
var DefaultParameters = types.Parameters{
	// --- Tick Price Model ---
	TickBase: "1.0001", // Every tick moves the price by one basis point.

	PricePrecision: 10, // Significant digits of a tick price.
	// Ticks span hundreds of thousands of steps; native floats drift long before that.

	// --- Display ---
	PriceShiftExponent: 12, // USDT (6 decimals) against an 18-decimal token.

	PriceDisplayDecimals: 6,

	CurrencyDecimals: 6, // USDT smallest unit.

	// --- Program ---
	ShareValue: 10, // One share costs 10 USDT.

	// --- Polling ---
	PollInterval: 15 * time.Second,

	PositionFetchConcurrency: 8,
}
