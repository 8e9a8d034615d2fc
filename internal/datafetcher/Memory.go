package datafetcher

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/globalpool/gpcore/internal/types"
)

// MemorySource is an in-memory Source. Readers get copies, so callers may mutate results freely.
// Identities are matched in their normalized form.
type MemorySource struct {
	mu sync.RWMutex

	positions  map[string][]types.PositionID
	ticks      map[types.PositionID]types.TickData
	claimed    map[types.PositionID]bool
	standings  map[string]types.UserStanding
	tiers      map[string][]types.EligibilityTier
	referrals  map[string][]types.ReferralSlot
	sponsors   map[string]string
	registered map[string]bool
	tvl        sdkmath.Int
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		positions:  make(map[string][]types.PositionID),
		ticks:      make(map[types.PositionID]types.TickData),
		claimed:    make(map[types.PositionID]bool),
		standings:  make(map[string]types.UserStanding),
		tiers:      make(map[string][]types.EligibilityTier),
		referrals:  make(map[string][]types.ReferralSlot),
		sponsors:   make(map[string]string),
		registered: make(map[string]bool),
		tvl:        sdkmath.ZeroInt(),
	}
}

// key normalizes identity, falling back to the raw string for values that are not addresses.
func key(identity string) string {
	if normalized, err := types.NormalizeIdentity(identity); err == nil {
		return normalized
	}
	return identity
}

// --- Writers ---

func (m *MemorySource) SetPositions(identity string, ids ...types.PositionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[key(identity)] = append([]types.PositionID(nil), ids...)
}

func (m *MemorySource) SetTickData(id types.PositionID, data types.TickData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[id] = data
}

func (m *MemorySource) SetClaimed(id types.PositionID, claimed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed[id] = claimed
}

func (m *MemorySource) SetStanding(identity string, standing types.UserStanding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standings[key(identity)] = standing
}

func (m *MemorySource) SetTiers(identity string, tiers []types.EligibilityTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[key(identity)] = append([]types.EligibilityTier(nil), tiers...)
}

func (m *MemorySource) SetReferrals(identity string, children ...types.ReferralSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[key(identity)] = append([]types.ReferralSlot(nil), children...)
}

func (m *MemorySource) SetSponsor(identity, sponsor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sponsors[key(identity)] = sponsor
}

func (m *MemorySource) SetRegistered(identity string, registered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered[key(identity)] = registered
}

func (m *MemorySource) SetTotalValueLocked(tvl sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tvl = tvl
}

// --- Readers ---

func (m *MemorySource) GetUserPositionIDs(_ context.Context, identity string) ([]types.PositionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.PositionID(nil), m.positions[key(identity)]...), nil
}

func (m *MemorySource) GetTickData(_ context.Context, id types.PositionID) (*types.TickData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.ticks[id]
	if !ok {
		return nil, nil
	}
	return NormalizeTickData(&data)
}

func (m *MemorySource) HasPositionClaimed(_ context.Context, id types.PositionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claimed[id], nil
}

func (m *MemorySource) GetUserStanding(_ context.Context, identity string) (types.UserStanding, error) {
	m.mu.RLock()
	standing := m.standings[key(identity)]
	m.mu.RUnlock()
	return NormalizeStanding(standing)
}

func (m *MemorySource) GetEligibilityTiers(_ context.Context, identity string) ([]types.EligibilityTier, error) {
	m.mu.RLock()
	tiers, ok := m.tiers[key(identity)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no eligibility table for %s", types.ErrDataUnavailable, identity)
	}
	return NormalizeTiers(tiers)
}

// GetReferralChildren returns an empty, non-nil list for identities without referrals.
func (m *MemorySource) GetReferralChildren(_ context.Context, identity string) ([]types.ReferralSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.ReferralSlot{}, m.referrals[key(identity)]...), nil
}

func (m *MemorySource) GetTotalValueLocked(_ context.Context) (sdkmath.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tvl.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return m.tvl, nil
}

func (m *MemorySource) GetSponsor(_ context.Context, identity string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sponsors[key(identity)], nil
}

func (m *MemorySource) IsRegistered(_ context.Context, identity string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered[key(identity)], nil
}
