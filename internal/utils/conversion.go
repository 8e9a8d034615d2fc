/*
This file contains common utility functions for converting currency amounts between
their smallest on-chain unit and human-readable form.
*/

package utils

import (
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrConversionFailed = errors.New("conversion failed")
)

func checkPrecision(precision int) error {
	if precision < 0 || precision > 18 {
		return fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	return nil
}

// OrZero returns amount, or zero when it is nil. Amounts decoded from external
// sources may be nil and every comparison on a nil Int panics.
func OrZero(amount sdkmath.Int) sdkmath.Int {
	if amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount
}

// FormatUnits renders an amount in smallest units with the given precision,
// keeping at least one fractional digit: 12000000 with precision 6 is "12.0".
func FormatUnits(amount sdkmath.Int, precision int) (string, error) {
	if err := checkPrecision(precision); err != nil {
		return "", err
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}

	s := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision)).String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = strings.TrimRight(s, "0")
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
	}
	return s, nil
}

// ParseUnits converts a decimal string such as "12.5" into smallest units.
// More fractional digits than the precision allows is an error, not a rounding.
func ParseUnits(value string, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '.'); i >= 0 && len(value)-i-1 > precision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q has more than %d decimals", ErrConversionFailed, value, precision)
	}

	dec, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return dec.Mul(sdkmath.LegacyNewDec(10).Power(uint64(precision))).TruncateInt(), nil
}

// WholeUnitsToInt scales a whole-unit count (e.g. 10 USDT) to smallest units.
func WholeUnitsToInt(units int64, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if units < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	factor := sdkmath.NewIntWithDecimal(1, precision)
	return sdkmath.NewInt(units).Mul(factor), nil
}
