package seed

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/marginlab/internal/margin"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Thresholds    margin.Thresholds
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way. Existing rows are
// never modified, so thresholds edited through the API survive restarts.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return Stats{}, fmt.Errorf("seed thresholds: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureThresholds(ctx, tx, cfg.Thresholds, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureThresholds(ctx context.Context, tx *sql.Tx, t margin.Thresholds, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM threshold_config WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check threshold config existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threshold_config (
			id,
			min_margin_rate,
			target_margin_rate,
			max_shipping_share,
			max_fee_rate,
			max_marketing_share,
			max_return_rate,
			max_payback_months
		)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, t.MinMarginRate, t.TargetMarginRate, t.MaxShippingShare, t.MaxFeeRate, t.MaxMarketingShare, t.MaxReturnRate, t.MaxPaybackMonths); err != nil {
		return fmt.Errorf("insert threshold config singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
