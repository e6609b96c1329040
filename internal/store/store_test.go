package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/marginlab/internal/db"
	"github.com/Simplici0/marginlab/internal/margin"
	"github.com/Simplici0/marginlab/internal/migrations"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = migrations.Up(context.Background(), database)
	require.NoError(t, err)

	return New(database, WithClock(clock.Now))
}

func saveCalc(t *testing.T, s *Store, title, notes string, in margin.Input) Calculation {
	t.Helper()

	result, err := margin.Calculate(in)
	require.NoError(t, err)

	c := Calculation{OwnerEmail: "admin@marginlab.test", Title: title, Notes: notes, Input: in, Result: result}
	require.NoError(t, s.SaveCalculation(context.Background(), &c))
	return c
}

func TestSaveAndGetCalculationReturnsSnapshot(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)

	in := margin.Input{CostPrice: 10000, ShippingCost: 2000, MarketplaceFeeRate: 10, MarketingCost: 1000, SellingPrice: 15000, ExpectedSales: 100, FixedCosts: 2500}
	saved := saveCalc(t, s, "Bamboo cutting board", "supplier A", in)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, clock.current, saved.CreatedAt)

	got, err := s.GetCalculation(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestGetCalculationDoesNotRecalculate(t *testing.T) {
	s := newTestStore(t, &fakeClock{current: time.Now()})

	c := Calculation{
		OwnerEmail: "admin@marginlab.test",
		Title:      "Frozen",
		Input:      margin.Input{SellingPrice: 1},
		Result:     margin.Result{MonthlyProfit: 999.99, Recommendations: []string{}},
	}
	require.NoError(t, s.SaveCalculation(context.Background(), &c))

	got, err := s.GetCalculation(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 999.99, got.Result.MonthlyProfit)
}

func TestGetCalculationNotFound(t *testing.T) {
	s := newTestStore(t, &fakeClock{current: time.Now()})

	_, err := s.GetCalculation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCalculationsOrdersNewestFirst(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)

	in := margin.Input{CostPrice: 50, SellingPrice: 100, ExpectedSales: 10}
	saveCalc(t, s, "First", "note one", in)
	clock.Advance(48 * time.Hour)
	saveCalc(t, s, "Third", "note three", in)
	clock.current = time.Date(2024, 1, 2, 11, 0, 0, 500, time.UTC)
	saveCalc(t, s, "Second", "note two", in)

	items, err := s.ListCalculations(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, []string{"Third", "Second", "First"}, []string{items[0].Title, items[1].Title, items[2].Title})
	assert.Equal(t, 500.0, items[0].MonthlyProfit)
	assert.Equal(t, 0.5, items[0].MarginRate)
}

func TestListCalculationsFiltersByTitleAndNotes(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)

	in := margin.Input{CostPrice: 50, SellingPrice: 100}
	saveCalc(t, s, "Garden hose", "red colorway", in)
	clock.Advance(time.Hour)
	saveCalc(t, s, "Keychains", "vip client", in)
	clock.Advance(time.Hour)
	saveCalc(t, s, "Prototype", "urgent garden order", in)

	byTitle, err := s.ListCalculations(context.Background(), ListParams{Query: "Keych"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Keychains", byTitle[0].Title)

	byNotes, err := s.ListCalculations(context.Background(), ListParams{Query: "garden"})
	require.NoError(t, err)
	assert.Len(t, byNotes, 2)
}

func TestListCalculationsPaginates(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)

	for _, title := range []string{"a", "b", "c", "d"} {
		saveCalc(t, s, title, "", margin.Input{SellingPrice: 10})
		clock.Advance(time.Minute)
	}

	page, err := s.ListCalculations(context.Background(), ListParams{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Title)
	assert.Equal(t, "b", page[1].Title)

	total, err := s.CountCalculations(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	total, err = s.CountCalculations(context.Background(), " c ")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeleteCalculation(t *testing.T) {
	s := newTestStore(t, &fakeClock{current: time.Now()})
	c := saveCalc(t, s, "Doomed", "", margin.Input{SellingPrice: 10})

	require.NoError(t, s.DeleteCalculation(context.Background(), c.ID))
	assert.ErrorIs(t, s.DeleteCalculation(context.Background(), c.ID), ErrNotFound)
	_, err := s.GetCalculation(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeCalculationsBefore(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)

	saveCalc(t, s, "old", "", margin.Input{SellingPrice: 10})
	clock.Advance(40 * 24 * time.Hour)
	kept := saveCalc(t, s, "new", "", margin.Input{SellingPrice: 10})

	removed, err := s.PurgeCalculationsBefore(context.Background(), clock.current.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	items, err := s.ListCalculations(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].ID)
}

func TestThresholdsRoundTrip(t *testing.T) {
	s := newTestStore(t, &fakeClock{current: time.Now()})
	ctx := context.Background()

	_, err := s.GetThresholds(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	th := margin.DefaultThresholds()
	th.MinMarginRate = 0.12
	require.NoError(t, s.UpdateThresholds(ctx, th))

	got, err := s.GetThresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, th, got)

	th.MaxFeeRate = 200
	var verr *margin.ValidationError
	require.ErrorAs(t, s.UpdateThresholds(ctx, th), &verr)
	assert.True(t, verr.Has("maxFeeRate"))
}

func TestPasswordHashNotFound(t *testing.T) {
	s := newTestStore(t, &fakeClock{current: time.Now()})

	_, err := s.PasswordHash(context.Background(), "nobody@marginlab.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
