package types

import "time"

// DashboardSnapshot is everything one poll produced for an identity.
// A snapshot is replaced wholesale, never merged.
type DashboardSnapshot struct {
	PollID      string             `json:"poll_id"`
	Sequence    uint64             `json:"sequence"`
	Identity    string             `json:"identity"`
	Sponsor     string             `json:"sponsor,omitempty"`
	Registered  bool               `json:"registered"`
	ReferralURL string             `json:"referral_url,omitempty"`
	Positions   []PositionView     `json:"positions"`
	Eligibility *EligibilityReport `json:"eligibility,omitempty"`
	Pool        *PoolMetrics       `json:"pool,omitempty"`
	Errors      []string           `json:"errors,omitempty"` // Failures of whole sections (standing, pool, sponsor)
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}
