// ABOUTME: Tests for the retry loop and exponential backoff
// ABOUTME: Validates backoff bounds, permanent errors and cancellation
package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		attempt  int
		min, max time.Duration
	}{
		{name: "attempt zero", base: time.Second, attempt: 0},
		{name: "negative attempt", base: time.Second, attempt: -3},
		{name: "zero base", base: 0, attempt: 3},
		{name: "first attempt", base: 100 * time.Millisecond, attempt: 1, min: 150 * time.Millisecond, max: 250 * time.Millisecond},
		{name: "third attempt", base: 100 * time.Millisecond, attempt: 3, min: 600 * time.Millisecond, max: time.Second},
		{name: "capped", base: time.Second, attempt: 10, min: 22500 * time.Millisecond, max: 37500 * time.Millisecond},
		{name: "huge attempt", base: time.Millisecond, attempt: 100, min: 22500 * time.Millisecond, max: 37500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				got := CalculateBackoff(tt.base, tt.attempt)
				if got < tt.min || got > tt.max {
					t.Fatalf("CalculateBackoff(%v, %d) = %v, want between %v and %v", tt.base, tt.attempt, got, tt.min, tt.max)
				}
			}
		})
	}
}

func TestCalculateBackoff_Jitter(t *testing.T) {
	first := CalculateBackoff(time.Second, 2)
	for i := 0; i < 100; i++ {
		if CalculateBackoff(time.Second, 2) != first {
			return
		}
	}
	t.Error("jitter should produce varying results, but all 100 samples were identical")
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var seen []int
	err := Retry(context.Background(), 3, time.Millisecond, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(seen) != 3 || seen[2] != 2 {
		t.Errorf("attempts = %v, want [0 1 2]", seen)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func(int) error {
		calls++
		return boom
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 2 || calls != 2 {
		t.Errorf("attempts = %d, calls = %d, want 2 and 2", exhausted.Attempts, calls)
	}
	if !errors.Is(err, boom) {
		t.Error("ExhaustedError should unwrap to the last error")
	}
	if err.Error() != "after 2 attempts: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRetry_PermanentStopsEarly(t *testing.T) {
	bad := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func(int) error {
		calls++
		return Permanent(bad)
	})
	if err != bad {
		t.Errorf("Retry() error = %v, want the unwrapped permanent error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_AtLeastOneAttempt(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), 0, time.Millisecond, func(int) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
