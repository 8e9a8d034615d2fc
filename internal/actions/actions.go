/*

This package decides which pool write operations a client may offer. It never
submits them: signing and broadcasting belong to the wallet, outside this core.

*/

package actions

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/globalpool/gpcore/internal/types"
	"github.com/globalpool/gpcore/internal/utils"
)

var ErrInvalidShareValue = errors.New("share value must be positive")

// AvailableActions returns the operations offered for a position: claim and reinvest
// once the position is ready, until it has been claimed. Unavailable positions get none.
func AvailableActions(progress types.PositionProgress, claimed bool) []types.ActionType {
	if !progress.Available() || !progress.IsReady || claimed {
		return []types.ActionType{}
	}
	return []types.ActionType{types.ActionClaim, types.ActionReinvest}
}

// PurchaseQuote is what a purchase of shares costs and the steps to make it.
type PurchaseQuote struct {
	Quantity      int64              `json:"quantity"`
	ShareValue    int64              `json:"share_value"`    // Whole currency units per share
	ApproveAmount sdkmath.Int        `json:"approve_amount"` // Smallest units the pool must be allowed to spend
	Display       string             `json:"display"`        // ApproveAmount in whole units
	Steps         []types.ActionType `json:"steps"`
}

// QuotePurchase prices quantity shares. A quantity below one is treated as one.
func QuotePurchase(quantity, shareValue int64, decimals int) (PurchaseQuote, error) {
	if shareValue <= 0 {
		return PurchaseQuote{}, ErrInvalidShareValue
	}
	if quantity < 1 {
		quantity = 1
	}

	unit, err := utils.WholeUnitsToInt(shareValue, decimals)
	if err != nil {
		return PurchaseQuote{}, fmt.Errorf("failed to price share: %w", err)
	}
	amount := unit.MulRaw(quantity)
	display, err := utils.FormatUnits(amount, decimals)
	if err != nil {
		return PurchaseQuote{}, fmt.Errorf("failed to format amount: %w", err)
	}

	return PurchaseQuote{
		Quantity:      quantity,
		ShareValue:    shareValue,
		ApproveAmount: amount,
		Display:       display,
		Steps:         []types.ActionType{types.ActionApprove, types.ActionBuy},
	}, nil
}

// SharesForAmount returns how many whole shares amount (smallest units) buys.
func SharesForAmount(amount sdkmath.Int, shareValue int64, decimals int) (int64, error) {
	if shareValue <= 0 {
		return 0, ErrInvalidShareValue
	}
	unit, err := utils.WholeUnitsToInt(shareValue, decimals)
	if err != nil {
		return 0, fmt.Errorf("failed to price share: %w", err)
	}
	shares := utils.OrZero(amount).Quo(unit)
	if !shares.IsInt64() {
		return 0, fmt.Errorf("amount buys more than %d shares", int64(math.MaxInt64))
	}
	return shares.Int64(), nil
}
