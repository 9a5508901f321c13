package similarity

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	resumerankErrors "resumerank/internal/errors"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// Recorder receives per-comparison measurements.
type Recorder interface {
	RecordSimilarity(ctx context.Context, provider string, duration time.Duration, err error)
	RecordEmbeddingCache(ctx context.Context, hit bool)
}

// DefaultCallTimeout bounds one shared provider call.
const DefaultCallTimeout = 30 * time.Second

type nopRecorder struct{}

func (nopRecorder) RecordSimilarity(context.Context, string, time.Duration, error) {}
func (nopRecorder) RecordEmbeddingCache(context.Context, bool)                     {}

// Engine computes cosine similarity between texts using a Provider, with
// caching, retries and a circuit breaker around the provider. Concurrent
// requests for the same text share one provider call; that call is detached
// from every caller's cancellation and bounded by its own timeout.
type Engine struct {
	provider    Provider
	cache       Cache
	breaker     *EmbeddingCircuitBreaker
	retry       retrier
	recorder    Recorder
	logger      *resumerankErrors.Logger
	group       singleflight.Group
	callTimeout time.Duration

	comparisons atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the embedding cache.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithCircuitBreaker wraps provider calls in b.
func WithCircuitBreaker(b *EmbeddingCircuitBreaker) Option {
	return func(e *Engine) { e.breaker = b }
}

// WithRetry retries retryable provider errors.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		e.retry.maxRetries = maxRetries
		e.retry.baseDelay = baseDelay
	}
}

// WithRecorder reports measurements to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithCallTimeout bounds each provider call, retries included.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *resumerankErrors.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine around provider. Without options it has no
// cache, no retries and no circuit breaker.
func NewEngine(provider Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:    provider,
		cache:       NoopCache{},
		recorder:    nopRecorder{},
		logger:      resumerankErrors.NewNopLogger(),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.logger = e.logger
	return e
}

// Provider returns the underlying provider.
func (e *Engine) Provider() Provider {
	return e.provider
}

// Similarity returns the cosine similarity of a and b in [-1,1]. Blank
// text is orthogonal to everything and never reaches the provider.
func (e *Engine) Similarity(ctx context.Context, a, b string) (float64, error) {
	tracer := otel.Tracer("resumerank.similarity")
	ctx, span := tracer.Start(ctx, "similarity.compare")
	defer span.End()

	span.SetAttributes(
		attribute.String("similarity.provider", e.provider.Name()),
		attribute.String("similarity.model", e.provider.Model()),
		attribute.Int("similarity.a.length", len(a)),
		attribute.Int("similarity.b.length", len(b)),
	)

	e.comparisons.Add(1)
	start := time.Now()
	score, err := e.compare(ctx, a, b)
	e.recorder.RecordSimilarity(ctx, e.provider.Name(), time.Since(start), err)

	if err != nil {
		e.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "similarity failed")
		return 0, e.wrapError(ctx, err)
	}

	span.SetAttributes(attribute.Float64("similarity.cosine", score))
	return score, nil
}

func (e *Engine) compare(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	va, err := e.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb)
}

// Embed returns the embedding of text, consulting the cache first.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.provider.Name(), e.provider.Model(), text)

	vec, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("Embedding cache read failed", "error", err.Error())
	} else if ok {
		e.cacheHits.Add(1)
		e.recorder.RecordEmbeddingCache(ctx, true)
		return vec, nil
	}
	e.cacheMisses.Add(1)
	e.recorder.RecordEmbeddingCache(ctx, false)

	ch := e.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
		defer cancel()

		vec, err := e.breaker.Execute(func() ([]float32, error) {
			return e.retry.do(callCtx, e.provider.Name()+".embed", func() ([]float32, error) {
				return e.provider.Embed(callCtx, text)
			})
		})
		if err != nil {
			return nil, err
		}
		if err := e.cache.Set(callCtx, key, vec); err != nil {
			e.logger.Warn("Embedding cache write failed", "error", err.Error())
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

func (e *Engine) wrapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resumerankErrors.NewSimilarityError(resumerankErrors.ErrCodeSimilarityTimeout,
			"similarity computation timed out", err).
			WithContext("provider", e.provider.Name())
	}

	appErr := resumerankErrors.NewSimilarityError(resumerankErrors.ErrCodeSimilarityFailed,
		"similarity computation failed", err).
		WithContext("provider", e.provider.Name())
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		appErr = appErr.WithContext("circuit", "open")
	}
	return appErr
}

// IsHealthy reports whether the provider's circuit breaker is closed.
func (e *Engine) IsHealthy() bool {
	return e.breaker.IsHealthy()
}

// Stats returns counters for the stats endpoint.
func (e *Engine) Stats() map[string]any {
	return map[string]any{
		"provider":       e.provider.Name(),
		"model":          e.provider.Model(),
		"comparisons":    e.comparisons.Load(),
		"failures":       e.failures.Load(),
		"cacheHits":      e.cacheHits.Load(),
		"cacheMisses":    e.cacheMisses.Load(),
		"circuitBreaker": e.breaker.GetStats(),
	}
}

// Close releases the provider and the cache.
func (e *Engine) Close() error {
	return errors.Join(e.provider.Close(), e.cache.Close())
}
