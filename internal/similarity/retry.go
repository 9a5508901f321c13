package similarity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	resumerankErrors "resumerank/internal/errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const maxBackoff = 30 * time.Second

// retrier re-runs an embedding call with exponential backoff and jitter.
type retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *resumerankErrors.Logger
}

// do executes fn, retrying retryable errors up to maxRetries times
func (r retrier) do(ctx context.Context, operation string, fn func() ([]float32, error)) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("Retrying embedding request",
				"operation", operation,
				"attempt", attempt,
				"max_retries", r.maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(r.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Embedding request succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			r.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			return nil, err
		}
	}

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, r.maxRetries, lastErr)
}

// backoff doubles baseDelay per attempt and adds up to 10% jitter
func (r retrier) backoff(attempt int) time.Duration {
	base := r.baseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	delay = min(delay, maxBackoff)

	if jitterMax := int64(float64(delay) * 0.1); jitterMax > 0 {
		if jitter, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			delay += time.Duration(jitter.Int64())
		}
	}
	return min(delay, maxBackoff)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeouts, refused connections)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
