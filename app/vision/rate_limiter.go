package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimiter tracks per-region call budgets over a sliding time window and
// reserves call slots for callers. Regions rotate round-robin; when a
// full rotation finds no spare capacity the caller sleeps one cooldown
// interval before rescanning, so saturation delays calls but never fails
// them.
type RateLimiter struct {
	quota    int
	window   time.Duration
	cooldown time.Duration

	budgets []*regionBudget

	mu     sync.Mutex // guards cursor only; budgets carry their own locks
	cursor int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// regionBudget serializes read-modify-write access to one region's
// timestamp window without blocking unrelated regions.
type regionBudget struct {
	mu    sync.Mutex
	id    string
	calls []time.Time
}

func NewRateLimiter(regions []string, quota int, window, cooldown time.Duration) *RateLimiter {
	budgets := make([]*regionBudget, 0, len(regions))
	for _, region := range regions {
		budgets = append(budgets, &regionBudget{id: region})
	}

	return &RateLimiter{
		quota:    quota,
		window:   window,
		cooldown: cooldown,
		budgets:  budgets,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// CanCall reports whether the region has spare capacity within the trailing
// window. Timestamps older than the window are pruned as a side effect.
func (l *RateLimiter) CanCall(region string) bool {
	budget := l.budget(region)
	if budget == nil {
		return false
	}

	budget.mu.Lock()
	defer budget.mu.Unlock()

	l.prune(budget)
	return len(budget.calls) < l.quota
}

// RecordCall charges one call against the region's budget.
func (l *RateLimiter) RecordCall(region string) {
	budget := l.budget(region)
	if budget == nil {
		return
	}

	budget.mu.Lock()
	defer budget.mu.Unlock()

	l.prune(budget)
	budget.calls = append(budget.calls, l.now())
}

// AwaitCapacity reserves one call slot and returns the region it was
// charged to. The scan starts at the current cursor so a region is reused
// until its budget runs out, then the rotation moves on. If a full rotation
// finds nothing it sleeps the cooldown and rescans; the only error it ever
// returns is context cancellation. A reservation for a call that never
// dispatched is refunded with Release.
func (l *RateLimiter) AwaitCapacity(ctx context.Context) (string, error) {
	for {
		if region, ok := l.acquire(); ok {
			return region, nil
		}

		slog.Debug("All inference regions saturated, cooling down",
			"regions", len(l.budgets), "cooldown", l.cooldown.String())

		if err := l.sleep(ctx, l.cooldown); err != nil {
			return "", err
		}
	}
}

// acquire walks one full rotation starting at the cursor and charges the
// first region with spare capacity, parking the cursor there. The check and
// the charge happen under the same budget lock so concurrent callers can
// never overrun a window.
func (l *RateLimiter) acquire() (string, bool) {
	l.mu.Lock()
	start := l.cursor
	l.mu.Unlock()

	for i := 0; i < len(l.budgets); i++ {
		idx := l.nextIndex(start, i)
		budget := l.budgets[idx]

		budget.mu.Lock()
		l.prune(budget)
		if len(budget.calls) < l.quota {
			budget.calls = append(budget.calls, l.now())
			budget.mu.Unlock()

			l.mu.Lock()
			l.cursor = idx
			l.mu.Unlock()
			return budget.id, true
		}
		budget.mu.Unlock()
	}

	return "", false
}

// Release refunds one reserved slot, for calls that never made it onto the
// wire. Only dispatched calls should count against the window.
func (l *RateLimiter) Release(region string) {
	budget := l.budget(region)
	if budget == nil {
		return
	}

	budget.mu.Lock()
	defer budget.mu.Unlock()

	if n := len(budget.calls); n > 0 {
		budget.calls = budget.calls[:n-1]
	}
}

// nextIndex advances a rotation pointer by offset, wrapping modulo region count.
func (l *RateLimiter) nextIndex(start, offset int) int {
	return (start + offset) % len(l.budgets)
}

// prune drops timestamps older than the window. Caller holds budget.mu.
func (l *RateLimiter) prune(budget *regionBudget) {
	cutoff := l.now().Add(-l.window)
	kept := budget.calls[:0]
	for _, call := range budget.calls {
		if call.After(cutoff) {
			kept = append(kept, call)
		}
	}
	budget.calls = kept
}

func (l *RateLimiter) budget(region string) *regionBudget {
	for _, budget := range l.budgets {
		if budget.id == region {
			return budget
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
