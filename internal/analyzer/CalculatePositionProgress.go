package analyzer

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/globalpool/gpcore/internal/types"
)

// PositionEvaluator derives progress, readiness and display prices from tick data.
type PositionEvaluator struct {
	prices          *TickPriceModel
	shift           decimal.Decimal
	displayDecimals int32
}

// NewPositionEvaluator builds an evaluator from the pool conventions in params.
func NewPositionEvaluator(params types.Parameters) (*PositionEvaluator, error) {
	prices, err := NewTickPriceModel(params.TickBase, params.PricePrecision)
	if err != nil {
		return nil, err
	}
	if params.PriceDisplayDecimals < 0 {
		return nil, fmt.Errorf("display decimals must not be negative, got %d", params.PriceDisplayDecimals)
	}
	return &PositionEvaluator{
		prices:          prices,
		shift:           decimal.New(1, int32(params.PriceShiftExponent)),
		displayDecimals: int32(params.PriceDisplayDecimals),
	}, nil
}

// Evaluate computes the derived attributes of a position.
// A position without tick data, or with ticks outside the pool bounds, yields an
// unavailable result, never zero progress.
func (e *PositionEvaluator) Evaluate(position types.Position) types.PositionProgress {
	if position.Data == nil || !position.Data.InRange() {
		return types.PositionProgress{Status: types.ProgressUnavailable}
	}
	d := position.Data
	return types.PositionProgress{
		Status:          types.ProgressAvailable,
		ProgressPercent: CalculateProgressPercent(d.StartTick, d.CurrentTick, d.UpperTick),
		IsReady:         IsReady(d.CurrentTick, d.UpperTick),
		StartPrice:      e.DisplayPrice(d.StartTick),
		TargetPrice:     e.DisplayPrice(d.UpperTick),
	}
}

// DisplayPrice renders price(tick) shifted into the pool's token decimals.
func (e *PositionEvaluator) DisplayPrice(tick types.TickValue) string {
	return e.prices.Price(tick).Mul(e.shift).StringFixed(e.displayDecimals)
}

// CalculateProgressPercent returns how far current has travelled from start to upper, in [0, 100].
// A zero-width range is all or nothing.
func CalculateProgressPercent(start, current, upper types.TickValue) float64 {
	if upper == start {
		if current >= upper {
			return 100
		}
		return 0
	}

	// Tick differences can exceed int64 at the extremes.
	travelled := new(big.Int).Sub(big.NewInt(int64(current)), big.NewInt(int64(start)))
	width := new(big.Int).Sub(big.NewInt(int64(upper)), big.NewInt(int64(start)))
	ratio, _ := new(big.Rat).SetFrac(travelled, width).Float64()
	raw := ratio * 100
	switch {
	case raw < 0:
		return 0
	case raw > 100:
		return 100
	default:
		return raw
	}
}

// IsReady reports whether a position has reached its target. It gates claim and reinvest.
func IsReady(current, upper types.TickValue) bool {
	return current >= upper
}
