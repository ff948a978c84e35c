package vision

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the limiter's notion of time without sleeping.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(regions []string, quota int) (*RateLimiter, *fakeClock) {
	limiter := NewRateLimiter(regions, quota, 60*time.Second, 60*time.Second)
	clock := &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter.now = clock.now
	return limiter, clock
}

func TestRateLimiter_WindowInvariant(t *testing.T) {
	limiter, clock := newTestLimiter([]string{"us-central1"}, 5)

	for i := 0; i < 5; i++ {
		if !limiter.CanCall("us-central1") {
			t.Fatalf("Call %d should be allowed, quota is 5", i+1)
		}
		limiter.RecordCall("us-central1")
	}

	if limiter.CanCall("us-central1") {
		t.Error("Sixth call within the window should not be allowed")
	}

	// Old timestamps fall out of the trailing window
	clock.advance(61 * time.Second)

	if !limiter.CanCall("us-central1") {
		t.Error("Calls should be allowed again once the window has passed")
	}
}

func TestRateLimiter_PartialWindowExpiry(t *testing.T) {
	limiter, clock := newTestLimiter([]string{"us-central1"}, 3)

	limiter.RecordCall("us-central1")
	limiter.RecordCall("us-central1")
	clock.advance(40 * time.Second)
	limiter.RecordCall("us-central1")

	if limiter.CanCall("us-central1") {
		t.Error("Three calls within 60s should exhaust a quota of 3")
	}

	// First two calls are now 65s old, the third only 25s
	clock.advance(25 * time.Second)

	if !limiter.CanCall("us-central1") {
		t.Error("Expected capacity after the first two calls aged out")
	}
}

func TestRateLimiter_SixthCallRotatesToNextRegion(t *testing.T) {
	limiter, _ := newTestLimiter([]string{"us-central1", "us-east1"}, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		region, err := limiter.AwaitCapacity(ctx)
		if err != nil {
			t.Fatalf("AwaitCapacity failed: %v", err)
		}
		if region != "us-central1" {
			t.Fatalf("Call %d: expected region us-central1, got %s", i+1, region)
		}
	}

	region, err := limiter.AwaitCapacity(ctx)
	if err != nil {
		t.Fatalf("AwaitCapacity failed: %v", err)
	}
	if region != "us-east1" {
		t.Errorf("Sixth call should rotate to us-east1, got %s", region)
	}
}

func TestRateLimiter_CooldownWhenAllRegionsSaturated(t *testing.T) {
	limiter, clock := newTestLimiter([]string{"us-central1", "us-east1"}, 1)

	sleeps := 0
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		if d != 60*time.Second {
			t.Errorf("Expected 60s cooldown, got %s", d)
		}
		clock.advance(d + time.Second)
		return nil
	}

	limiter.RecordCall("us-central1")
	limiter.RecordCall("us-east1")

	region, err := limiter.AwaitCapacity(context.Background())
	if err != nil {
		t.Fatalf("AwaitCapacity failed: %v", err)
	}

	if sleeps != 1 {
		t.Errorf("Expected exactly one cooldown sleep, got %d", sleeps)
	}
	if region == "" {
		t.Error("Expected a region after the cooldown")
	}
}

func TestRateLimiter_AwaitCapacityHonorsCancellation(t *testing.T) {
	limiter, _ := newTestLimiter([]string{"us-central1"}, 1)
	limiter.RecordCall("us-central1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := limiter.AwaitCapacity(ctx); err == nil {
		t.Error("Expected a context error when cancelled during cooldown")
	}
}

func TestRateLimiter_ConcurrentReservationsHonorQuota(t *testing.T) {
	limiter, _ := newTestLimiter([]string{"us-central1", "us-east1"}, 5)

	// The clock never advances, so all reservations land in one window.
	// Ten workers against a combined capacity of ten must fill both
	// regions exactly, never overrun either.
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[string]int)
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			region, err := limiter.AwaitCapacity(context.Background())
			if err != nil {
				t.Errorf("AwaitCapacity failed: %v", err)
				return
			}

			mu.Lock()
			counts[region]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	total := 0
	for region, count := range counts {
		if count > 5 {
			t.Errorf("Region %s holds %d calls in the trailing window, quota is 5", region, count)
		}
		total += count
	}
	if total != 10 {
		t.Errorf("Expected 10 reservations in total, got %d", total)
	}

	if limiter.CanCall("us-central1") || limiter.CanCall("us-east1") {
		t.Error("Both regions should be exactly saturated")
	}
}

func TestRateLimiter_ReleaseRefundsSlot(t *testing.T) {
	limiter, _ := newTestLimiter([]string{"us-central1"}, 1)

	region, err := limiter.AwaitCapacity(context.Background())
	if err != nil {
		t.Fatalf("AwaitCapacity failed: %v", err)
	}

	if limiter.CanCall(region) {
		t.Fatal("A quota of 1 should be exhausted by one reservation")
	}

	limiter.Release(region)

	if !limiter.CanCall(region) {
		t.Error("A released slot should be reservable again")
	}

	// Releasing an empty or unknown budget must not panic
	limiter.Release(region)
	limiter.Release("eu-west4")
}

func TestRateLimiter_UnknownRegion(t *testing.T) {
	limiter, _ := newTestLimiter([]string{"us-central1"}, 5)

	if limiter.CanCall("eu-west4") {
		t.Error("Unknown region should never be callable")
	}

	// Recording against an unknown region must not panic
	limiter.RecordCall("eu-west4")
}
