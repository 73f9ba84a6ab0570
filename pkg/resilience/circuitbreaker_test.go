package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := NewCircuitBreaker("kafka", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	boom := errors.New("broker down")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open circuit must reject without calling, err = %v", err)
	}

	clock = clock.Add(time.Minute)
	if err := cb.Execute(ctx, fail); !errors.Is(err, boom) {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("failed probe must re-open, state = %s", cb.State())
	}

	clock = clock.Add(time.Minute)
	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker("kafka", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "publish", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	if err := WithTimeout(context.Background(), 0, "publish", func(context.Context) error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}
}
