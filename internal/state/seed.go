package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/globalpool/gpcore/internal/datafetcher"
	"github.com/globalpool/gpcore/internal/types"
)

// dropSchemaSQL removes every indexer table.
const dropSchemaSQL = `
	DROP TABLE IF EXISTS position_claims CASCADE;
	DROP TABLE IF EXISTS tick_data CASCADE;
	DROP TABLE IF EXISTS positions CASCADE;
	DROP TABLE IF EXISTS eligibility_tables CASCADE;
	DROP TABLE IF EXISTS user_standings CASCADE;
	DROP TABLE IF EXISTS referrals CASCADE;
	DROP TABLE IF EXISTS pool_metrics CASCADE;
`

// ResetSchema drops the indexer tables and creates them again. Local setups only.
func ResetSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return EnsureSchema()
}

// SeedFixture writes a fixture into the indexer tables in one transaction, so that
// a local database serves the same data as the fixture source.
func SeedFixture(ctx context.Context, db *sql.DB, fixture datafetcher.Fixture) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := fixture.Build(); err != nil {
		return fmt.Errorf("invalid fixture: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pool_metrics (id, total_value_locked, updated_at) VALUES (1, $1::NUMERIC, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET total_value_locked = EXCLUDED.total_value_locked, updated_at = CURRENT_TIMESTAMP`,
		numeric(fixture.Pool.TotalValueLocked),
	); err != nil {
		return fmt.Errorf("failed to write pool metrics: %w", err)
	}

	directs := make([]int64, len(fixture.Tiers))
	values := make([]string, len(fixture.Tiers))
	for i, tier := range fixture.Tiers {
		directs[i] = tier.RequiredDirects
		values[i] = numeric(tier.RequiredValue)
	}

	for _, user := range fixture.Users {
		if err := seedUser(ctx, tx, user, fixture.Tiers, directs, values); err != nil {
			return fmt.Errorf("failed to seed %s: %w", user.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	indexerLogger.Info().Int("users", len(fixture.Users)).Msg("Seeded indexer tables from fixture")
	return nil
}

func seedUser(ctx context.Context, tx *sql.Tx, user datafetcher.FixtureUser, tiers []datafetcher.FixtureTier, directs []int64, values []string) error {
	identity, err := types.NormalizeIdentity(user.Identity)
	if err != nil {
		return err
	}
	var sponsor sql.NullString
	if user.Sponsor != "" {
		normalized, err := types.NormalizeIdentity(user.Sponsor)
		if err != nil {
			return err
		}
		sponsor = sql.NullString{String: normalized, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_standings (identity, directs_quantity, value_invested, registered, sponsor)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		identity, user.DirectsQuantity, numeric(user.ValueInvested), user.Registered, sponsor,
	); err != nil {
		return fmt.Errorf("user_standings: %w", err)
	}

	eligible := make(map[int]bool, len(user.EligibleLevels))
	for _, level := range user.EligibleLevels {
		eligible[level] = true
	}
	flags := make([]bool, len(tiers))
	for i, tier := range tiers {
		flags[i] = eligible[tier.Level]
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO eligibility_tables (identity, is_eligible, required_directs, required_values)
		 VALUES ($1, $2, $3, $4::NUMERIC[])`,
		identity, pq.Array(flags), pq.Array(directs), pq.Array(values),
	); err != nil {
		return fmt.Errorf("eligibility_tables: %w", err)
	}

	for i, ref := range user.Referrals {
		var referral sql.NullString
		if !types.IsEmptyIdentity(ref) {
			normalized, err := types.NormalizeIdentity(ref)
			if err != nil {
				return err
			}
			referral = sql.NullString{String: normalized, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO referrals (sponsor, slot_index, referral) VALUES ($1, $2, $3)`,
			identity, i, referral,
		); err != nil {
			return fmt.Errorf("referrals: %w", err)
		}
	}

	for _, pos := range user.Positions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions (position_id, owner) VALUES ($1, $2)`, int64(pos.ID), identity,
		); err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		if pos.Tick != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tick_data (position_id, start_tick, current_tick, upper_tick) VALUES ($1, $2, $3, $4)`,
				int64(pos.ID), int64(pos.Tick.StartTick), int64(pos.Tick.CurrentTick), int64(pos.Tick.UpperTick),
			); err != nil {
				return fmt.Errorf("tick_data: %w", err)
			}
		}
		if pos.Claimed {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO position_claims (position_id) VALUES ($1)`, int64(pos.ID),
			); err != nil {
				return fmt.Errorf("position_claims: %w", err)
			}
		}
	}
	return nil
}

// numeric renders a fixture amount for a NUMERIC parameter. Empty means zero.
func numeric(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	return s
}
