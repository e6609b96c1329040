package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/marginlab/internal/margin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Calculation is a named, timestamped snapshot of one margin calculation.
// The result is stored as computed and never recalculated on read.
type Calculation struct {
	ID         string        `json:"id"`
	OwnerEmail string        `json:"ownerEmail"`
	Title      string        `json:"title"`
	Notes      string        `json:"notes"`
	Input      margin.Input  `json:"input"`
	Result     margin.Result `json:"result"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// CalculationSummary is the list view of a saved calculation.
type CalculationSummary struct {
	ID            string    `json:"id"`
	OwnerEmail    string    `json:"ownerEmail"`
	Title         string    `json:"title"`
	MonthlyProfit float64   `json:"monthlyProfit"`
	MarginRate    float64   `json:"marginRate"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListParams filters and pages saved calculations.
type ListParams struct {
	// Query matches title or notes as a substring; empty matches everything.
	Query  string
	Limit  int
	Offset int
}

// SaveCalculation stores c, assigning its ID and CreatedAt when empty.
func (s *Store) SaveCalculation(ctx context.Context, c *Calculation) error {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.CreatedAt = c.CreatedAt.UTC()

	inputJSON, err := json.Marshal(c.Input)
	if err != nil {
		return fmt.Errorf("encode calculation input: %w", err)
	}
	resultJSON, err := json.Marshal(c.Result)
	if err != nil {
		return fmt.Errorf("encode calculation result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations (
			id, owner_email, title, notes, input_json, result_json, monthly_profit, margin_rate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.OwnerEmail,
		c.Title,
		c.Notes,
		string(inputJSON),
		string(resultJSON),
		c.Result.MonthlyProfit,
		c.Result.MarginRate,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert calculation: %w", err)
	}
	return nil
}

// GetCalculation returns the saved calculation with id, or ErrNotFound.
func (s *Store) GetCalculation(ctx context.Context, id string) (Calculation, error) {
	var (
		c          Calculation
		inputJSON  string
		resultJSON string
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_email, title, COALESCE(notes, ''), input_json, result_json, created_at
		FROM calculations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.OwnerEmail, &c.Title, &c.Notes, &inputJSON, &resultJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Calculation{}, ErrNotFound
	}
	if err != nil {
		return Calculation{}, fmt.Errorf("query calculation: %w", err)
	}

	if err := json.Unmarshal([]byte(inputJSON), &c.Input); err != nil {
		return Calculation{}, fmt.Errorf("decode calculation input: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &c.Result); err != nil {
		return Calculation{}, fmt.Errorf("decode calculation result: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Calculation{}, fmt.Errorf("parse calculation created_at: %w", err)
	}

	return c, nil
}

// ListCalculations returns summaries ordered newest first.
func (s *Store) ListCalculations(ctx context.Context, p ListParams) ([]CalculationSummary, error) {
	query := strings.TrimSpace(p.Query)
	search := "%" + query + "%"

	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_email, title, monthly_profit, margin_rate, created_at
		FROM calculations
		WHERE (? = '' OR title LIKE ? OR COALESCE(notes, '') LIKE ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, query, search, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	summaries := make([]CalculationSummary, 0)
	for rows.Next() {
		var (
			item      CalculationSummary
			createdAt string
		)
		if err := rows.Scan(&item.ID, &item.OwnerEmail, &item.Title, &item.MonthlyProfit, &item.MarginRate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse calculation created_at: %w", err)
		}
		summaries = append(summaries, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}

	return summaries, nil
}

// CountCalculations returns how many calculations match query, ignoring paging.
func (s *Store) CountCalculations(ctx context.Context, query string) (int, error) {
	query = strings.TrimSpace(query)
	search := "%" + query + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM calculations
		WHERE (? = '' OR title LIKE ? OR COALESCE(notes, '') LIKE ?)
	`, query, search, search).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count calculations: %w", err)
	}
	return total, nil
}

// DeleteCalculation removes the calculation with id, or returns ErrNotFound.
func (s *Store) DeleteCalculation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeCalculationsBefore deletes calculations created before cutoff and
// returns how many were removed.
func (s *Store) PurgeCalculationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge calculations: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge calculations: %w", err)
	}
	return removed, nil
}
