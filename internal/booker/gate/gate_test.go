package gate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastGate(attempts int) Gate {
	return Gate{Attempts: attempts, Interval: time.Millisecond}
}

func TestAwait_ImmediateSuccessEvaluatesOnce(t *testing.T) {
	calls := 0
	ok := fastGate(2).Await(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if !ok {
		t.Fatal("Await = false, want true")
	}
	if calls != 1 {
		t.Errorf("predicate called %d times, want 1", calls)
	}
}

func TestAwait_SucceedsOnRetry(t *testing.T) {
	calls := 0
	ok := fastGate(3).Await(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		return calls >= 2, nil
	})
	if !ok {
		t.Fatal("Await = false, want true")
	}
	if calls != 2 {
		t.Errorf("predicate called %d times, want 2", calls)
	}
}

func TestAwait_ExhaustsAttempts(t *testing.T) {
	calls := 0
	ok := fastGate(2).Await(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if ok {
		t.Fatal("Await = true, want false")
	}
	if calls != 2 {
		t.Errorf("predicate called %d times, want exactly 2", calls)
	}
}

func TestAwait_PredicateErrorCountsAsFalse(t *testing.T) {
	calls := 0
	ok := fastGate(2).Await(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("count element missing")
		}
		return true, nil
	})
	if !ok {
		t.Fatal("Await = false, want true after error then success")
	}
}

func TestAwait_ContextCancelEndsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	ok := Gate{Attempts: 5, Interval: time.Hour}.Await(ctx, "test", func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if ok {
		t.Fatal("Await = true on cancelled context, want false")
	}
	// First evaluation is immediate; cancellation stops the waits after it.
	if calls != 1 {
		t.Errorf("predicate called %d times, want 1", calls)
	}
}
