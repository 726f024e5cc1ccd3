package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// requests to prevent cascading failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before transitioning to
	// half-open. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes required
	// in half-open state to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// CircuitBreaker wraps gobreaker to protect provider calls. When closed,
// requests pass through; after MaxFailures consecutive failures the circuit
// opens and rejects requests until Timeout elapses.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a circuit breaker with the default settings.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewCircuitBreakerWithConfig creates a circuit breaker with custom settings.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "ProviderCircuitBreaker",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // never clear counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the circuit breaker. If the circuit is open it
// returns ErrCircuitOpen immediately without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}
