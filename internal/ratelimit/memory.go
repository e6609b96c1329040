package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Limiter used when no Redis is configured.
type Memory struct {
	mu     sync.Mutex
	limit  int64
	now    func() time.Time
	counts map[string]map[string]int64 // day -> key -> count
}

// NewMemory returns a Memory limiter allowing limit requests per key per
// day. A limit of zero or less disables the cap.
func NewMemory(limit int64) *Memory {
	return &Memory{limit: limit, now: time.Now, counts: make(map[string]map[string]int64)}
}

func (l *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	reset := nextMidnight(now)
	if l.limit <= 0 {
		return Decision{Allowed: true, ResetAt: reset}, nil
	}

	day := dayKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	perKey, ok := l.counts[day]
	if !ok {
		perKey = make(map[string]int64)
		l.counts[day] = perKey
	}
	perKey[key]++
	count := perKey[key]

	return Decision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
		ResetAt: reset,
	}, nil
}

// Prune drops counters of days before today and returns how many days
// were removed.
func (l *Memory) Prune() int {
	today := dayKey(l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for day := range l.counts {
		if day < today {
			delete(l.counts, day)
			removed++
		}
	}
	return removed
}
