package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Cooldown:         50 * time.Millisecond,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig("test-open"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewCircuitBreaker: %v", err)
	}

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		}); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if !cb.IsOpen() {
		t.Fatalf("breaker should be open after 3 consecutive failures, state=%s", cb.GetState())
	}
}

func TestOpenBreakerShortCircuitsWithoutInvoking(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig("test-short-circuit"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewCircuitBreaker: %v", err)
	}

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}
	if !cb.IsOpen() {
		t.Fatal("breaker should be open")
	}

	invoked := false
	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		invoked = true
		return "value", nil
	})
	if err == nil {
		t.Fatal("expected short-circuit error")
	}
	if !IsShortCircuit(err) {
		t.Fatalf("expected short-circuit classification, got %v", err)
	}
	if invoked {
		t.Fatal("call must not be invoked while the circuit is open")
	}
}

func TestBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig("test-close"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewCircuitBreaker: %v", err)
	}

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}
	if !cb.IsOpen() {
		t.Fatal("breaker should be open")
	}

	// Wait out the cooldown so the breaker admits trial calls.
	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return "ok", nil
		}); err != nil {
			t.Fatalf("half-open call %d failed: %v", i, err)
		}
	}

	if !cb.IsClosed() {
		t.Fatalf("breaker should close after 2 half-open successes, state=%s", cb.GetState())
	}
}

func TestManagerStateHookObservesTransitions(t *testing.T) {
	m := NewManager(zap.NewNop())
	cb, err := m.GetOrCreate("hooked-svc", testConfig("hooked-svc"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	var names, states []string
	m.SetStateHook(func(name, state string) {
		names = append(names, name)
		states = append(states, state)
	})

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}
	if !cb.IsOpen() {
		t.Fatal("breaker should be open")
	}

	if len(states) == 0 {
		t.Fatal("state hook should fire on the closed to open transition")
	}
	if names[len(names)-1] != "hooked-svc" || states[len(states)-1] != "open" {
		t.Fatalf("last transition = %s:%s, want hooked-svc:open", names[len(names)-1], states[len(states)-1])
	}
}

func TestManagerReturnsSameBreaker(t *testing.T) {
	m := NewManager(zap.NewNop())

	a, err := m.GetOrCreate("svc", DefaultConfig("svc"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b, err := m.GetOrCreate("svc", DefaultConfig("svc"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if a != b {
		t.Fatal("manager should return the same breaker for the same name")
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatal("Get should miss for unknown name")
	}
}
