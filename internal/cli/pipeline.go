package cli

import (
	"context"
	"fmt"

	"resumerank/internal/config"
	"resumerank/internal/errors"
	"resumerank/internal/observability"
	"resumerank/internal/ranking"
	"resumerank/internal/scoring"
	"resumerank/internal/similarity"
)

// pipeline is the similarity engine and ranker built from configuration.
type pipeline struct {
	engine *similarity.Engine
	ranker *ranking.Ranker
}

// newPipeline wires the similarity engine, scoring profile and ranker. om may
// be nil, in which case nothing is measured.
func newPipeline(ctx context.Context, cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) (*pipeline, error) {
	metrics := om.GetMetrics()

	engine, err := similarity.NewEngineFromConfig(ctx, cfg.Similarity, logger, metrics)
	if err != nil {
		return nil, err
	}

	profile, err := scoring.ProfileFromConfig(cfg.Scoring)
	if err != nil {
		_ = engine.Close()
		return nil, errors.NewConfigError(errors.ErrCodeInvalidProfile, "failed to load scoring profile", err)
	}

	scorer, err := scoring.NewScorer(profile, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	ranker, err := ranking.NewFromConfig(cfg.Ranking, scorer,
		ranking.WithProviderName(engine.Provider().Name()),
		ranking.WithRecorder(metrics),
		ranking.WithLogger(logger),
	)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to create ranker: %w", err)
	}

	logger.Debug("Scoring profile loaded",
		"version", profile.Vocabulary.Version(),
		"skills", profile.Vocabulary.Len())

	return &pipeline{engine: engine, ranker: ranker}, nil
}

// Close releases the provider and cache connections.
func (p *pipeline) Close(logger *errors.Logger) {
	if err := p.engine.Close(); err != nil {
		logger.LogError(err, "Failed to close similarity engine")
	}
}
