// Package ratelimit enforces a per-client daily cap on requests.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetAt time.Time
}

// Remaining returns how many requests are left today.
func (d Decision) Remaining() int64 {
	if d.Limit <= 0 {
		return -1
	}
	if r := d.Limit - d.Count; r > 0 {
		return r
	}
	return 0
}

// Limiter counts requests per key and calendar day (UTC).
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
