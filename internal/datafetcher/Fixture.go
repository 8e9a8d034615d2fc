/*

This file contains the YAML fixture loader. A fixture describes a whole pool
(figures, tier requirements, users, their positions and referrals) and is served
through a MemorySource. It backs local runs and demos without an indexer.

*/

package datafetcher

import (
	"fmt"
	"os"
	"strings"

	sdkmath "cosmossdk.io/math"
	"gopkg.in/yaml.v3"

	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/types"
)

var fixtureLogger = logger.GetForComponent("fixture_loader")

// Fixture is the file layout.
type Fixture struct {
	Pool  FixturePool   `yaml:"pool"`
	Tiers []FixtureTier `yaml:"tiers"`
	Users []FixtureUser `yaml:"users"`
}

type FixturePool struct {
	TotalValueLocked string `yaml:"total_value_locked"` // Smallest units
}

// FixtureTier holds the requirements of a level. Eligibility flags are per user.
type FixtureTier struct {
	Level           int    `yaml:"level"`
	RequiredDirects int64  `yaml:"required_directs"`
	RequiredValue   string `yaml:"required_value"` // Smallest units
}

type FixtureUser struct {
	Identity        string            `yaml:"identity"`
	Sponsor         string            `yaml:"sponsor"`
	Registered      bool              `yaml:"registered"`
	DirectsQuantity int64             `yaml:"directs_quantity"`
	ValueInvested   string            `yaml:"value_invested"` // Smallest units
	EligibleLevels  []int             `yaml:"eligible_levels"`
	Referrals       []string          `yaml:"referrals"` // "" marks an unfilled slot
	Positions       []FixturePosition `yaml:"positions"`
}

type FixturePosition struct {
	ID      types.PositionID `yaml:"id"`
	Tick    *types.TickData  `yaml:"tick"` // Omitted when the position has no tick data
	Claimed bool             `yaml:"claimed"`
}

// LoadFixture reads a fixture file into a MemorySource.
func LoadFixture(path string) (*MemorySource, error) {
	fixture, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	src, err := fixture.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture %s: %w", path, err)
	}
	return src, nil
}

// ReadFixture decodes a fixture file without validating it.
func ReadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read fixture file: %w", err)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return fixture, nil
}

// ParseFixture decodes fixture YAML into a MemorySource.
func ParseFixture(data []byte) (*MemorySource, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return fixture.Build()
}

// Build validates the fixture and loads it into a new MemorySource.
func (f Fixture) Build() (*MemorySource, error) {
	src := NewMemorySource()

	tvl, err := parseAmount(f.Pool.TotalValueLocked)
	if err != nil {
		return nil, fmt.Errorf("pool.total_value_locked: %w", err)
	}
	src.SetTotalValueLocked(tvl)

	if len(f.Tiers) != types.TierCount {
		return nil, fmt.Errorf("%w: fixture has %d tiers, want %d", types.ErrInvalidTierTable, len(f.Tiers), types.TierCount)
	}
	requirements := make([]types.EligibilityTier, len(f.Tiers))
	for i, tier := range f.Tiers {
		value, err := parseAmount(tier.RequiredValue)
		if err != nil {
			return nil, fmt.Errorf("tiers[%d].required_value: %w", i, err)
		}
		requirements[i] = types.EligibilityTier{Level: tier.Level, RequiredDirects: tier.RequiredDirects, RequiredValue: value}
	}

	seenPositions := make(map[types.PositionID]string)
	for i, user := range f.Users {
		identity, err := types.NormalizeIdentity(user.Identity)
		if err != nil {
			return nil, fmt.Errorf("users[%d].identity: %w", i, err)
		}

		invested, err := parseAmount(user.ValueInvested)
		if err != nil {
			return nil, fmt.Errorf("users[%d].value_invested: %w", i, err)
		}
		src.SetStanding(identity, types.UserStanding{DirectsQuantity: user.DirectsQuantity, ValueInvested: invested})

		eligible := make(map[int]bool, len(user.EligibleLevels))
		for _, level := range user.EligibleLevels {
			eligible[level] = true
		}
		tiers := make([]types.EligibilityTier, len(requirements))
		for j, req := range requirements {
			req.IsEligible = eligible[req.Level]
			tiers[j] = req
		}
		src.SetTiers(identity, tiers)

		if user.Sponsor != "" {
			sponsor, err := types.NormalizeIdentity(user.Sponsor)
			if err != nil {
				return nil, fmt.Errorf("users[%d].sponsor: %w", i, err)
			}
			src.SetSponsor(identity, sponsor)
		}
		src.SetRegistered(identity, user.Registered)

		slots := make([]types.ReferralSlot, len(user.Referrals))
		for j, ref := range user.Referrals {
			slots[j] = types.ReferralSlot{Identity: strings.TrimSpace(ref)}
		}
		src.SetReferrals(identity, slots...)

		ids := make([]types.PositionID, 0, len(user.Positions))
		for _, pos := range user.Positions {
			if owner, dup := seenPositions[pos.ID]; dup {
				return nil, fmt.Errorf("users[%d]: position %d already belongs to %s", i, pos.ID, owner)
			}
			seenPositions[pos.ID] = identity
			ids = append(ids, pos.ID)
			if pos.Tick != nil {
				if _, err := NormalizeTickData(pos.Tick); err != nil {
					return nil, fmt.Errorf("users[%d]: position %d: %w", i, pos.ID, err)
				}
				src.SetTickData(pos.ID, *pos.Tick)
			}
			src.SetClaimed(pos.ID, pos.Claimed)
		}
		src.SetPositions(identity, ids...)
	}

	fixtureLogger.Info().Int("users", len(f.Users)).Int("positions", len(seenPositions)).Msg("Loaded fixture")
	return src, nil
}

// parseAmount parses a smallest-unit integer. Empty means zero.
func parseAmount(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative amount %q", s)
	}
	return amount, nil
}
