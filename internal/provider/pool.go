package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Fantasim/solfan/internal/config"
)

// Named is an endpoint that can identify itself in logs.
type Named interface {
	Caller
	Name() string
}

// Pool spreads calls across endpoints round-robin with per-endpoint circuit
// breakers, failing over to the next endpoint on transient errors.
type Pool struct {
	endpoints []Named
	breakers  []*CircuitBreaker // one per endpoint, same index
	current   atomic.Int32
}

// NewPool creates a pool over the given endpoints.
func NewPool(endpoints ...Named) *Pool {
	names := make([]string, len(endpoints))
	breakers := make([]*CircuitBreaker, len(endpoints))
	for i, e := range endpoints {
		names[i] = e.Name()
		breakers[i] = NewCircuitBreaker(e.Name(), config.CircuitBreakerThreshold, config.CircuitBreakerCooldown)
	}

	slog.Info("rpc pool created", "endpoints", names, "count", len(endpoints))

	return &Pool{endpoints: endpoints, breakers: breakers}
}

func (p *Pool) nextIndex() int {
	idx := p.current.Add(1)
	return int(idx-1) % len(p.endpoints)
}

// Call tries each endpoint at most once, starting from the next in rotation.
// Non-transient errors are returned immediately without failover.
func (p *Pool) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if len(p.endpoints) == 0 {
		return fmt.Errorf("%s: %w", method, config.ErrAllProvidersFailed)
	}

	var allErrors []error
	for range len(p.endpoints) {
		idx := p.nextIndex()
		ep := p.endpoints[idx]
		cb := p.breakers[idx]

		if !cb.Allow() {
			slog.Debug("circuit breaker open, skipping endpoint", "endpoint", ep.Name(), "method", method)
			allErrors = append(allErrors, fmt.Errorf("%s: %w", ep.Name(), config.ErrCircuitOpen))
			continue
		}

		err := ep.Call(ctx, method, params, out)
		if err == nil {
			cb.RecordSuccess()
			return nil
		}

		if ctx.Err() != nil {
			return err
		}
		if !config.IsTransient(err) {
			// The node answered; the request itself was rejected.
			cb.RecordSuccess()
			return err
		}

		cb.RecordFailure()
		allErrors = append(allErrors, fmt.Errorf("%s: %w", ep.Name(), err))
		slog.Warn("endpoint failed, trying next",
			"endpoint", ep.Name(),
			"method", method,
			"circuitState", cb.State(),
			"consecutiveFailures", cb.ConsecutiveFailures(),
			"error", err,
		)
	}

	// Every breaker open still reads as a network failure to callers that retry.
	joined := errors.Join(allErrors...)
	if config.KindOf(joined) == config.KindUnknown {
		joined = config.NewNetworkError(method, joined)
	}
	return fmt.Errorf("%w: %w", config.ErrAllProvidersFailed, joined)
}
