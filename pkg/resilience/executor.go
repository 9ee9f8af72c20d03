package resilience

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Strategy names the fallback behavior when a call cannot be served live.
type Strategy string

const (
	// StrategyCache serves provided stale or alternate data.
	StrategyCache Strategy = "cache"
	// StrategyMock serves a canned substitute value.
	StrategyMock Strategy = "mock"
	// StrategyDegraded serves a generic needs-manual-review value.
	StrategyDegraded Strategy = "degraded_service"
)

// Fallback describes a substitute result for a failed call.
type Fallback struct {
	Strategy Strategy
	// Provide returns the substitute value. The error that triggered the
	// fallback is passed for context.
	Provide func(cause error) (interface{}, error)
}

// Outcome is the result of an executor call. FromFallback is true when the
// value came from a fallback strategy rather than the live dependency.
type Outcome struct {
	Value        interface{}
	FromFallback bool
	Strategy     Strategy
}

// ErrNoFallback indicates the call failed and no fallback was configured.
var ErrNoFallback = errors.New("call failed and no fallback configured")

// Executor runs operations through per-service circuit breakers with
// configurable fallback strategies.
type Executor struct {
	breakers *Manager
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewExecutor creates an executor backed by a breaker manager.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		breakers: NewManager(logger),
		logger:   logger,
		tracer:   otel.Tracer("resilience-executor"),
	}
}

// Breakers exposes the underlying manager for health reporting.
func (e *Executor) Breakers() *Manager { return e.breakers }

// Execute runs call through the named service's circuit breaker. On any
// failure (including an open circuit) the fallback, when configured, supplies
// the result tagged FromFallback. The error is only returned when no fallback
// is configured or the fallback itself fails.
func (e *Executor) Execute(ctx context.Context, service, operation string, call func(ctx context.Context) (interface{}, error), fb *Fallback) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "resilient_execute",
		trace.WithAttributes(
			attribute.String("service", service),
			attribute.String("operation", operation),
		))
	defer span.End()

	cb, err := e.breakers.GetOrCreate(service, DefaultConfig(service))
	if err != nil {
		return Outcome{}, fmt.Errorf("breaker for %s: %w", service, err)
	}

	value, err := cb.Execute(ctx, func() (interface{}, error) {
		return call(ctx)
	})
	if err == nil {
		return Outcome{Value: value}, nil
	}

	span.RecordError(err)

	if fb == nil || fb.Provide == nil {
		return Outcome{}, fmt.Errorf("%s %s: %w: %w", service, operation, ErrNoFallback, err)
	}

	e.logger.Warn("serving from fallback",
		zap.String("service", service),
		zap.String("operation", operation),
		zap.String("strategy", string(fb.Strategy)),
		zap.Bool("circuit_open", IsShortCircuit(err)),
		zap.Error(err))

	value, fbErr := fb.Provide(err)
	if fbErr != nil {
		return Outcome{}, fmt.Errorf("%s %s: fallback %s failed: %w", service, operation, fb.Strategy, fbErr)
	}

	span.SetAttributes(attribute.String("fallback", string(fb.Strategy)))
	return Outcome{Value: value, FromFallback: true, Strategy: fb.Strategy}, nil
}
