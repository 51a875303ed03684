package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Exponential(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tc := range tests {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_Capped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	if got := p.Backoff(10); got != 3*time.Second {
		t.Errorf("expected cap 3s, got %v", got)
	}
}

func TestBackoff_JitterWithinBounds(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Jitter: true}
	for i := 0; i < 100; i++ {
		got := p.Backoff(1)
		if got < 750*time.Millisecond || got > 1250*time.Millisecond {
			t.Fatalf("jittered backoff %v out of +/-25%% bounds", got)
		}
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), Policy{Attempts: 3}, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 {
		t.Errorf("expected hook on 2 retries, got %v", retried)
	}
}

func TestDo_Exhausted(t *testing.T) {
	sentinel := errors.New("upstream down")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5}, func(_ context.Context, _ int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 calls, got %d", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("unauthorized")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5}, func(_ context.Context, _ int) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("returned error should not keep the permanent marker")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_AttemptTimeoutIsTransient(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, AttemptTimeout: 10 * time.Millisecond}
	err := Do(context.Background(), p, func(ctx context.Context, _ int) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 3 {
		t.Errorf("timeouts must be retried: expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := Do(ctx, p, func(_ context.Context, _ int) error {
		calls++
		return errors.New("fail")
	}, func(_ int, _ error, _ time.Duration) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
