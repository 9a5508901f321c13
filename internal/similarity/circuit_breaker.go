package similarity

import (
	"context"
	"errors"
	"fmt"

	"resumerank/internal/config"
	resumerankErrors "resumerank/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// EmbeddingCircuitBreaker wraps provider calls with the circuit breaker
// pattern. A nil breaker executes calls directly.
type EmbeddingCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[[]float32]
}

// NewEmbeddingCircuitBreaker returns nil when the breaker is disabled.
func NewEmbeddingCircuitBreaker(provider string, cfg config.CircuitBreakerConfig, logger *resumerankErrors.Logger) *EmbeddingCircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("Embedding-%s", provider),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		// A caller giving up is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"provider", provider,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &EmbeddingCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[[]float32](settings),
	}
}

// Execute executes fn with circuit breaker protection
func (b *EmbeddingCircuitBreaker) Execute(fn func() ([]float32, error)) ([]float32, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *EmbeddingCircuitBreaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *EmbeddingCircuitBreaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
