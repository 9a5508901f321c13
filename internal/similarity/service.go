package similarity

import (
	"context"
	"fmt"

	"resumerank/internal/config"
	resumerankErrors "resumerank/internal/errors"
)

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.SimilarityConfig) (Provider, error) {
	switch cfg.Provider {
	case "local", "":
		return NewHashingProvider(cfg.Dimensions), nil
	case "ollama":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "gemini":
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeSimilarityFailed,
				"failed to create gemini provider", err)
		}
		return p, nil
	default:
		return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeUnsupportedProvider,
			fmt.Sprintf("unsupported similarity provider: %s", cfg.Provider), nil)
	}
}

// NewCache creates the cache backend named by cfg.Backend.
func NewCache(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "none", "":
		return NoopCache{}, nil
	case "memory":
		return NewMemoryCache(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		c, err := NewRedisCache(ctx, cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeInvalidConfig,
				"failed to initialise redis embedding cache", err)
		}
		return c, nil
	default:
		return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported cache backend: %s", cfg.Backend), nil)
	}
}

// NewEngineFromConfig wires a provider, cache, retries and circuit breaker
// from configuration.
func NewEngineFromConfig(ctx context.Context, cfg config.SimilarityConfig, logger *resumerankErrors.Logger, recorder Recorder) (*Engine, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache, err := NewCache(ctx, cfg.Cache)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("Similarity engine initialised",
			"provider", provider.Name(),
			"model", provider.Model(),
			"cache", cfg.Cache.Backend,
			"max_retries", cfg.MaxRetries,
			"circuit_breaker", cfg.CircuitBreaker.Enabled)
	}

	return NewEngine(provider,
		WithCache(cache),
		WithCircuitBreaker(NewEmbeddingCircuitBreaker(provider.Name(), cfg.CircuitBreaker, logger)),
		WithRetry(cfg.MaxRetries, cfg.RetryBaseDelay),
		WithCallTimeout(cfg.Timeout),
		WithRecorder(recorder),
		WithLogger(logger),
	), nil
}
