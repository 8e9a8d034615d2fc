/*

This file contains the types for liquidity positions and the values derived from their tick data.

*/

package types

// TickValue is a discretized price coordinate. price = 1.0001^tick.
type TickValue int64

// Tick bounds of the pool. Prices outside this range are not representable on-chain.
const (
	MinTick TickValue = -887272
	MaxTick TickValue = 887272
)

// InRange reports whether tick lies within the pool's tick bounds.
func (t TickValue) InRange() bool {
	return t >= MinTick && t <= MaxTick
}

// TickData is the raw tick triple of a position as reported by the pool.
type TickData struct {
	StartTick   TickValue `json:"start_tick" yaml:"start_tick"`     // Lower (entry) bound
	CurrentTick TickValue `json:"current_tick" yaml:"current_tick"` // Live bound, refreshed by the pool
	UpperTick   TickValue `json:"upper_tick" yaml:"upper_tick"`     // Target bound
}

// InRange reports whether every tick of the triple lies within the pool's tick bounds.
func (d TickData) InRange() bool {
	return d.StartTick.InRange() && d.CurrentTick.InRange() && d.UpperTick.InRange()
}

// PositionID identifies a position in the pool.
type PositionID uint64

// Position is a user's staked range. Data is nil when the tick data could not be resolved.
type Position struct {
	ID   PositionID `json:"id"`
	Data *TickData  `json:"data"`
}

// ProgressStatus tags whether the derived fields of a PositionProgress can be trusted.
type ProgressStatus string

const (
	ProgressAvailable   ProgressStatus = "available"
	ProgressUnavailable ProgressStatus = "unavailable"
)

// PositionProgress holds the derived, non-stored attributes of a position.
// When Status is ProgressUnavailable every other field is meaningless and must not be rendered.
type PositionProgress struct {
	Status          ProgressStatus `json:"status"`
	ProgressPercent float64        `json:"progress_percent,omitempty"`
	IsReady         bool           `json:"is_ready,omitempty"`
	StartPrice      string         `json:"start_price,omitempty"`
	TargetPrice     string         `json:"target_price,omitempty"`
}

// Available reports whether the progress was computed from real tick data.
func (p PositionProgress) Available() bool {
	return p.Status == ProgressAvailable
}

// ActionType is a write operation the pool accepts for a position or for the pool itself.
type ActionType string

const (
	ActionApprove  ActionType = "APPROVE"
	ActionBuy      ActionType = "BUY"
	ActionClaim    ActionType = "CLAIM"
	ActionReinvest ActionType = "REINVEST"
)

// PositionView is a position with everything a client needs to render it.
type PositionView struct {
	Position
	Progress PositionProgress `json:"progress"`
	Claimed  bool             `json:"claimed"`
	Actions  []ActionType     `json:"actions"`
	Error    string           `json:"error,omitempty"` // Set when fetching this position failed
}
