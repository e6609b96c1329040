package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/marginlab/internal/margin"
)

// GetThresholds returns the singleton recommendation thresholds, or
// ErrNotFound when they were never seeded.
func (s *Store) GetThresholds(ctx context.Context) (margin.Thresholds, error) {
	var t margin.Thresholds
	err := s.db.QueryRowContext(ctx, `
		SELECT
			min_margin_rate,
			target_margin_rate,
			max_shipping_share,
			max_fee_rate,
			max_marketing_share,
			max_return_rate,
			max_payback_months
		FROM threshold_config
		WHERE id = 1
	`).Scan(
		&t.MinMarginRate,
		&t.TargetMarginRate,
		&t.MaxShippingShare,
		&t.MaxFeeRate,
		&t.MaxMarketingShare,
		&t.MaxReturnRate,
		&t.MaxPaybackMonths,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return margin.Thresholds{}, ErrNotFound
	}
	if err != nil {
		return margin.Thresholds{}, fmt.Errorf("query threshold_config: %w", err)
	}
	return t, nil
}

// UpdateThresholds validates t and writes it to the singleton row,
// creating the row when missing.
func (s *Store) UpdateThresholds(ctx context.Context, t margin.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threshold_config (
			id,
			min_margin_rate,
			target_margin_rate,
			max_shipping_share,
			max_fee_rate,
			max_marketing_share,
			max_return_rate,
			max_payback_months
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			min_margin_rate = excluded.min_margin_rate,
			target_margin_rate = excluded.target_margin_rate,
			max_shipping_share = excluded.max_shipping_share,
			max_fee_rate = excluded.max_fee_rate,
			max_marketing_share = excluded.max_marketing_share,
			max_return_rate = excluded.max_return_rate,
			max_payback_months = excluded.max_payback_months,
			updated_at = CURRENT_TIMESTAMP
	`,
		t.MinMarginRate,
		t.TargetMarginRate,
		t.MaxShippingShare,
		t.MaxFeeRate,
		t.MaxMarketingShare,
		t.MaxReturnRate,
		t.MaxPaybackMonths,
	)
	if err != nil {
		return fmt.Errorf("upsert threshold_config: %w", err)
	}
	return nil
}
