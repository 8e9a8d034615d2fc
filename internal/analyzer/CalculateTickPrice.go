package analyzer

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/globalpool/gpcore/internal/types"
)

// ErrInvalidTickBase indicates a tick base that is not a decimal greater than one.
var ErrInvalidTickBase = errors.New("tick base must be a decimal greater than 1")

// guardDigits are carried through the exponentiation and dropped by the final rounding.
const guardDigits = 12

// maxPriceExponent bounds the decimal exponent of any price. Decimal exponents are int32
// and a product of two operands adds their exponents.
const maxPriceExponent = 1 << 29

// TickPriceModel computes base^tick with a fixed number of significant digits.
// It is immutable and safe for concurrent use.
type TickPriceModel struct {
	base      decimal.Decimal
	inverse   decimal.Decimal
	precision int32
	limit     uint64 // largest |tick| whose price stays within maxPriceExponent
}

var defaultTickPriceModel = mustTickPriceModel("1.0001", 10)

// NewTickPriceModel creates a model for the given base and significant-digit precision.
func NewTickPriceModel(base string, precision int) (*TickPriceModel, error) {
	b, err := decimal.NewFromString(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTickBase, err)
	}
	if b.LessThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidTickBase, base)
	}
	if precision < 1 {
		return nil, fmt.Errorf("precision must be positive, got %d", precision)
	}

	work := int32(precision) + guardDigits
	return &TickPriceModel{
		base:      b,
		inverse:   decimal.NewFromInt(1).DivRound(b, work+int32(len(b.Coefficient().String()))),
		precision: int32(precision),
		limit:     tickLimit(b),
	}, nil
}

func mustTickPriceModel(base string, precision int) *TickPriceModel {
	m, err := NewTickPriceModel(base, precision)
	if err != nil {
		panic(err)
	}
	return m
}

// DefaultTickPriceModel returns the 1.0001 model with 10 significant digits.
func DefaultTickPriceModel() *TickPriceModel {
	return defaultTickPriceModel
}

// TickToPrice converts a tick to a price with the default model.
func TickToPrice(tick types.TickValue) decimal.Decimal {
	return defaultTickPriceModel.Price(tick)
}

// Precision returns the number of significant digits of the model.
func (m *TickPriceModel) Precision() int {
	return int(m.precision)
}

// tickLimit returns the largest |tick| for which base^tick keeps its decimal exponent
// within maxPriceExponent.
func tickLimit(base decimal.Decimal) uint64 {
	log := math.Log10(base.InexactFloat64())
	if log <= 0 {
		return math.MaxInt64
	}
	limit := math.Floor(maxPriceExponent / log)
	if limit >= math.MaxInt64 {
		return math.MaxInt64
	}
	return uint64(limit)
}

// Limit returns the largest tick magnitude the model prices exactly. Larger ticks saturate.
func (m *TickPriceModel) Limit() types.TickValue {
	return types.TickValue(m.limit)
}

// Price returns base^tick rounded to the model's significant digits.
// Negative ticks raise the reciprocal of the base so that no division happens in the loop.
// Ticks beyond Limit are priced at the limit.
func (m *TickPriceModel) Price(tick types.TickValue) decimal.Decimal {
	if tick == 0 {
		return decimal.NewFromInt(1)
	}

	factor := m.base
	n := uint64(tick)
	if tick < 0 {
		factor = m.inverse
		n = uint64(-(tick + 1)) + 1
	}
	if n > m.limit {
		n = m.limit
	}

	work := m.precision + guardDigits
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = roundSignificant(result.Mul(factor), work)
		}
		n >>= 1
		if n > 0 {
			factor = roundSignificant(factor.Mul(factor), work)
		}
	}

	return roundSignificant(result, m.precision)
}

// roundSignificant rounds d to sig significant digits.
func roundSignificant(d decimal.Decimal, sig int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	digits := int32(len(new(big.Int).Abs(d.Coefficient()).String()))
	places := sig - digits - d.Exponent()
	return d.Round(places)
}
