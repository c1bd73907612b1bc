package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWaitForSlot_AdmitsUpToMax(t *testing.T) {
	limiter := New(3, time.Second, 10*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.WaitForSlot(ctx); err != nil {
			t.Fatalf("admission %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first %d admissions should be immediate, took %v", 3, elapsed)
	}
}

func TestWaitForSlot_DelaysOverMax(t *testing.T) {
	window := 200 * time.Millisecond
	limiter := New(2, window, 10*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.WaitForSlot(ctx); err != nil {
			t.Fatalf("admission %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("third admission should wait out the window, elapsed %v", elapsed)
	}
}

func TestWaitForSlot_NeverExceedsMaxPerWindow(t *testing.T) {
	window := 150 * time.Millisecond
	max := 4
	limiter := New(max, window, 5*time.Millisecond)
	ctx := context.Background()

	var mu sync.Mutex
	var admissions []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.WaitForSlot(ctx); err != nil {
				t.Errorf("admission failed: %v", err)
				return
			}
			mu.Lock()
			admissions = append(admissions, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := range admissions {
		count := 0
		for j := range admissions {
			diff := admissions[j].Sub(admissions[i])
			if diff >= 0 && diff < window {
				count++
			}
		}
		if count > max {
			t.Fatalf("window starting at admission %d observed %d admissions, cap is %d", i, count, max)
		}
	}
}

func TestWaitForSlot_ContextCancel(t *testing.T) {
	limiter := New(1, time.Minute, 10*time.Millisecond)

	if err := limiter.WaitForSlot(context.Background()); err != nil {
		t.Fatalf("first admission failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.WaitForSlot(ctx)
	if err == nil {
		t.Fatal("expected context error while waiting for a slot")
	}
}
