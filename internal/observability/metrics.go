package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics. A nil *Metrics records nothing, so it
// can be passed to the ranking and similarity packages unconditionally.
type Metrics struct {
	// Ranking metrics
	RankingsTotal   metric.Int64Counter
	RankingDuration metric.Float64Histogram
	ResumesScored   metric.Int64Counter
	FinalScore      metric.Float64Histogram

	// Similarity metrics
	SimilarityDuration metric.Float64Histogram
	SimilarityErrors   metric.Int64Counter
	EmbeddingCache     metric.Int64Counter

	// Server metrics
	RateLimitHits  metric.Int64Counter
	ProfileReloads metric.Int64Counter
}

var scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	if err := m.createRankingMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createSimilarityMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createServerMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

// createRankingMetrics creates ranking-related metrics
func (m *Metrics) createRankingMetrics(meter metric.Meter) error {
	var err error

	m.RankingsTotal, err = meter.Int64Counter(
		"resumerank_rankings_total",
		metric.WithDescription("Total number of rankings performed"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rankings metric: %w", err)
	}

	m.RankingDuration, err = meter.Float64Histogram(
		"resumerank_ranking_duration_seconds",
		metric.WithDescription("Time spent ranking one batch of resumes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ranking duration metric: %w", err)
	}

	m.ResumesScored, err = meter.Int64Counter(
		"resumerank_resumes_scored_total",
		metric.WithDescription("Total number of resumes scored"),
	)
	if err != nil {
		return fmt.Errorf("failed to create resumes scored metric: %w", err)
	}

	m.FinalScore, err = meter.Float64Histogram(
		"resumerank_final_score",
		metric.WithDescription("Distribution of final resume scores"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	)
	if err != nil {
		return fmt.Errorf("failed to create final score metric: %w", err)
	}

	return nil
}

// createSimilarityMetrics creates similarity engine metrics
func (m *Metrics) createSimilarityMetrics(meter metric.Meter) error {
	var err error

	m.SimilarityDuration, err = meter.Float64Histogram(
		"resumerank_similarity_duration_seconds",
		metric.WithDescription("Time spent computing one similarity"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create similarity duration metric: %w", err)
	}

	m.SimilarityErrors, err = meter.Int64Counter(
		"resumerank_similarity_errors_total",
		metric.WithDescription("Total number of failed similarity computations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create similarity errors metric: %w", err)
	}

	m.EmbeddingCache, err = meter.Int64Counter(
		"resumerank_embedding_cache_requests_total",
		metric.WithDescription("Embedding cache lookups by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding cache metric: %w", err)
	}

	return nil
}

// createServerMetrics creates HTTP server metrics
func (m *Metrics) createServerMetrics(meter metric.Meter) error {
	var err error

	m.RateLimitHits, err = meter.Int64Counter(
		"resumerank_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.ProfileReloads, err = meter.Int64Counter(
		"resumerank_profile_reloads_total",
		metric.WithDescription("Total number of scoring profile reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create profile reloads metric: %w", err)
	}

	return nil
}

// RecordRanking records one completed ranking.
func (m *Metrics) RecordRanking(ctx context.Context, resumes, failures int, duration time.Duration) {
	if m == nil || m.RankingsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("partial", failures > 0))
	m.RankingsTotal.Add(ctx, 1, attrs)
	m.RankingDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordResumeScored records the outcome of scoring one resume.
func (m *Metrics) RecordResumeScored(ctx context.Context, success bool, finalScore float64) {
	if m == nil || m.ResumesScored == nil {
		return
	}
	m.ResumesScored.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		m.FinalScore.Record(ctx, finalScore)
	}
}

// RecordSimilarity records one similarity computation.
func (m *Metrics) RecordSimilarity(ctx context.Context, provider string, duration time.Duration, err error) {
	if m == nil || m.SimilarityDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("success", err == nil),
	)
	m.SimilarityDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.SimilarityErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// RecordEmbeddingCache records an embedding cache lookup.
func (m *Metrics) RecordEmbeddingCache(ctx context.Context, hit bool) {
	if m == nil || m.EmbeddingCache == nil {
		return
	}
	m.EmbeddingCache.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordRateLimitHit records a rejected request. limitType is "ip" or "api_key".
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limitType string) {
	if m == nil || m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_type", limitType)))
}

// RecordProfileReload records a scoring profile reload attempt.
func (m *Metrics) RecordProfileReload(ctx context.Context, success bool) {
	if m == nil || m.ProfileReloads == nil {
		return
	}
	m.ProfileReloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
