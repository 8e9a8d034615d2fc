/*

This file contains the types for the 15-level eligibility ladder.

Currency values are integers in the smallest unit (USDT has 6 decimals) so that
threshold comparisons never go through floating point.

*/

package types

import (
	"cosmossdk.io/math"
)

// TierCount is the fixed number of levels in the eligibility ladder.
const TierCount = 15

// EligibilityTier is one level of the ladder as supplied by the pool.
type EligibilityTier struct {
	Level           int      `json:"level"`            // 1..15
	RequiredDirects int64    `json:"required_directs"` // Direct referrals needed
	RequiredValue   math.Int `json:"required_value"`   // Invested value needed, smallest unit
	IsEligible      bool     `json:"is_eligible"`      // Source of truth, computed by the pool
}

// UserStanding is what a user brings to the ladder.
type UserStanding struct {
	DirectsQuantity int64    `json:"directs_quantity"`
	ValueInvested   math.Int `json:"value_invested"`
}

// TierResult is the evaluation of a single tier.
type TierResult struct {
	Level           int      `json:"level"`
	RequiredDirects int64    `json:"required_directs"`
	RequiredValue   math.Int `json:"required_value"`
	MeetsDirects    bool     `json:"meets_directs"`
	MeetsValue      bool     `json:"meets_value"`
	IsEligible      bool     `json:"is_eligible"`
	Consistent      bool     `json:"consistent"` // False when the local breakdown contradicts IsEligible
}

// EligibilityReport is the full ladder, always TierCount results in ascending level order.
type EligibilityReport struct {
	Standing  UserStanding          `json:"standing"`
	Results   []TierResult          `json:"results"`
	Anomalies []*EligibilityAnomaly `json:"anomalies,omitempty"`
}
