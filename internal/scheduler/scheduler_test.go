package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff  time.Time
	removed int64
	err     error
	calls   int
}

func (p *fakePurger) PurgeCalculationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.calls++
	p.cutoff = cutoff
	return p.removed, p.err
}

type fakePruner struct{ calls int }

func (p *fakePruner) Prune() int {
	p.calls++
	return 1
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNew_RegistersConfiguredJobs(t *testing.T) {
	s, err := New(Config{RetentionDays: 30, Purger: &fakePurger{}, Pruner: &fakePruner{}}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())

	s, err = New(Config{RetentionDays: 0, Purger: &fakePurger{}}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Jobs())
}

func TestPurgeExpired_UsesRetentionCutoff(t *testing.T) {
	purger := &fakePurger{removed: 4}
	var reported int64
	s, err := New(Config{RetentionDays: 30, Purger: purger, OnPurge: func(n int64) { reported = n }}, quietLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC) }

	s.PurgeExpired(context.Background())

	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), purger.cutoff)
	assert.Equal(t, int64(4), reported)
}

func TestPurgeExpired_LogsFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	var called bool
	s, err := New(Config{RetentionDays: 7, Purger: &fakePurger{err: errors.New("disk full")}, OnPurge: func(int64) { called = true }}, log)
	require.NoError(t, err)

	s.PurgeExpired(context.Background())

	assert.False(t, called)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "retention purge failed", hook.LastEntry().Message)
}

func TestPruneLimiter(t *testing.T) {
	pruner := &fakePruner{}
	s, err := New(Config{Pruner: pruner}, quietLogger())
	require.NoError(t, err)

	s.PruneLimiter()
	assert.Equal(t, 1, pruner.calls)
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{Pruner: &fakePruner{}}, quietLogger())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
