// Package limiter implements the sliding-window call budget applied to
// abusable game operations. Unlike the HTTP middleware's token bucket, this
// limiter enforces an exact "at most N calls per trailing window" rule per
// (actor, operation) pair, which is the contract the anti-abuse gates need.
package limiter

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Rule is the budget for one operation.
type Rule struct {
	MaxCalls int
	Window   time.Duration
}

type key struct {
	actor string
	op    string
}

// Limiter tracks call timestamps per (actor, operation).
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	records map[key][]time.Time
	logger  *zap.Logger
}

// New creates a Limiter with the given per-operation rules. Operations with
// no rule are always allowed.
func New(rules map[string]Rule, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = map[string]Rule{}
	}
	return &Limiter{
		rules:   rules,
		records: make(map[key][]time.Time),
		logger:  logger,
	}
}

// Allow reports whether actor may perform op at time now. The call is
// recorded only when allowed, so denied spam does not extend the lockout.
func (l *Limiter) Allow(actorID, op string, now time.Time) bool {
	rule, ok := l.rules[op]
	if !ok || rule.MaxCalls <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{actor: actorID, op: op}
	cutoff := now.Add(-rule.Window)
	stamps := l.records[k]

	// Prune calls that fell out of the window.
	n := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			stamps[n] = ts
			n++
		}
	}
	stamps = stamps[:n]

	if len(stamps) >= rule.MaxCalls {
		l.records[k] = stamps
		l.logger.Debug("rate limit exceeded",
			zap.String("actor", actorID),
			zap.String("op", op),
			zap.Int("calls_in_window", len(stamps)))
		return false
	}

	l.records[k] = append(stamps, now)
	return true
}

// GC drops records whose every timestamp has aged out of its window. Purely
// a memory bound; correctness does not depend on it running.
func (l *Limiter) GC(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, stamps := range l.records {
		rule, ok := l.rules[k.op]
		if !ok {
			delete(l.records, k)
			removed++
			continue
		}
		cutoff := now.Add(-rule.Window)
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.records, k)
			removed++
		}
	}
	return removed
}

// TrackedActors returns the number of live (actor, operation) records.
func (l *Limiter) TrackedActors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
