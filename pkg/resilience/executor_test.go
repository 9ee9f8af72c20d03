package resilience

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestExecutorReturnsLiveValue(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	out, err := exec.Execute(context.Background(), "svc-live", "lookup", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.FromFallback {
		t.Fatal("live result must not be flagged as fallback")
	}
	if out.Value.(int) != 42 {
		t.Fatalf("got %v, want 42", out.Value)
	}
}

func TestExecutorFallbackOnFailure(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	var cause error
	out, err := exec.Execute(context.Background(), "svc-fb", "lookup", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("upstream down")
	}, &Fallback{
		Strategy: StrategyCache,
		Provide: func(err error) (interface{}, error) {
			cause = err
			return "stale", nil
		},
	})
	if err != nil {
		t.Fatalf("Execute with fallback: %v", err)
	}
	if !out.FromFallback {
		t.Fatal("result should be flagged as fallback")
	}
	if out.Strategy != StrategyCache {
		t.Fatalf("strategy = %s, want %s", out.Strategy, StrategyCache)
	}
	if out.Value.(string) != "stale" {
		t.Fatalf("got %v, want stale", out.Value)
	}
	if cause == nil {
		t.Fatal("fallback should receive the triggering error")
	}
}

func TestExecutorNoFallbackPropagatesError(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	boom := errors.New("boom")
	_, err := exec.Execute(context.Background(), "svc-nofb", "lookup", func(ctx context.Context) (interface{}, error) {
		return nil, boom
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("error should wrap ErrNoFallback, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error should wrap the call error, got %v", err)
	}
}

func TestExecutorFallbackServesOpenCircuit(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	fail := func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("down")
	}
	// Trip the default breaker (5 consecutive failures).
	for i := 0; i < 5; i++ {
		exec.Execute(context.Background(), "svc-open", "lookup", fail, nil)
	}
	cb, ok := exec.Breakers().Get("svc-open")
	if !ok || !cb.IsOpen() {
		t.Fatal("breaker should be open after 5 failures")
	}

	invoked := false
	out, err := exec.Execute(context.Background(), "svc-open", "lookup", func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	}, &Fallback{
		Strategy: StrategyDegraded,
		Provide: func(cause error) (interface{}, error) {
			if !IsShortCircuit(cause) {
				t.Fatalf("expected short-circuit cause, got %v", cause)
			}
			return "degraded", nil
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if invoked {
		t.Fatal("open circuit must not invoke the call")
	}
	if !out.FromFallback || out.Value.(string) != "degraded" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestExecutorFallbackFailure(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	_, err := exec.Execute(context.Background(), "svc-fbfail", "lookup", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("down")
	}, &Fallback{
		Strategy: StrategyMock,
		Provide: func(cause error) (interface{}, error) {
			return nil, errors.New("fallback empty")
		},
	})
	if err == nil {
		t.Fatal("expected error when the fallback itself fails")
	}
}
