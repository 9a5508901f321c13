// Package ranking scores a batch of resumes against one job description and
// orders them by final score.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"resumerank/internal/config"
	"resumerank/internal/errors"
	"resumerank/internal/extract"
	"resumerank/internal/scoring"
	"resumerank/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency   = 4
	defaultResumeTimeout = time.Minute
)

// Recorder receives ranking measurements.
type Recorder interface {
	RecordRanking(ctx context.Context, resumes, failures int, duration time.Duration)
	RecordResumeScored(ctx context.Context, success bool, finalScore float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordRanking(context.Context, int, int, time.Duration) {}
func (nopRecorder) RecordResumeScored(context.Context, bool, float64)     {}

// Ranker runs rankings with a bounded worker pool. The active scorer can be
// replaced at any time; a ranking keeps the scorer it started with.
type Ranker struct {
	scorer        atomic.Pointer[scoring.Scorer]
	concurrency   int
	resumeTimeout time.Duration
	maxResumes    int
	provider      string
	recorder      Recorder
	logger        *errors.Logger
	now           func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithConcurrency bounds the number of resumes scored at once.
func WithConcurrency(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithResumeTimeout bounds the time spent scoring a single resume.
func WithResumeTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.resumeTimeout = d
		}
	}
}

// WithMaxResumes rejects batches larger than n. Zero means unlimited.
func WithMaxResumes(n int) Option {
	return func(r *Ranker) { r.maxResumes = n }
}

// WithProviderName records the similarity provider in reports.
func WithProviderName(name string) Option {
	return func(r *Ranker) { r.provider = name }
}

// WithRecorder reports measurements to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Ranker) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *errors.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Ranker around scorer.
func New(scorer *scoring.Scorer, opts ...Option) (*Ranker, error) {
	if scorer == nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "scorer is required", nil)
	}
	r := &Ranker{
		concurrency:   defaultConcurrency,
		resumeTimeout: defaultResumeTimeout,
		recorder:      nopRecorder{},
		logger:        errors.NewNopLogger(),
		now:           time.Now,
	}
	r.scorer.Store(scorer)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFromConfig creates a Ranker using the ranking section of the configuration.
func NewFromConfig(cfg config.RankingConfig, scorer *scoring.Scorer, opts ...Option) (*Ranker, error) {
	base := []Option{
		WithConcurrency(cfg.Concurrency),
		WithResumeTimeout(cfg.ResumeTimeout),
		WithMaxResumes(cfg.MaxResumes),
	}
	return New(scorer, append(base, opts...)...)
}

// Scorer returns the active scorer.
func (r *Ranker) Scorer() *scoring.Scorer {
	return r.scorer.Load()
}

// SetScorer replaces the active scorer. Rankings already running are not affected.
func (r *Ranker) SetScorer(s *scoring.Scorer) {
	if s != nil {
		r.scorer.Store(s)
	}
}

type outcome struct {
	breakdown scoring.ScoreBreakdown
	err       error
}

// Rank scores every document against job and returns the ordered report.
// A document that fails to score is listed in Report.Failures and does not
// affect the others; only cancellation of ctx aborts the ranking.
func (r *Ranker) Rank(ctx context.Context, job string, docs []extract.RawDocument) (*types.Report, error) {
	start := r.now()

	job = scoring.Normalize(job)
	if job == "" {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyJobDescription,
			"job description is empty", nil)
	}
	if len(docs) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyResumeBatch,
			"no resumes were provided", nil)
	}
	if r.maxResumes > 0 && len(docs) > r.maxResumes {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("batch of %d resumes exceeds the limit of %d", len(docs), r.maxResumes), nil).
			WithContext("max_resumes", r.maxResumes)
	}

	scorer := r.Scorer()
	profile := scorer.Profile()
	prepared := scorer.PrepareJob(job)

	outcomes := make([]outcome, len(docs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			rctx, cancel := context.WithTimeout(ctx, r.resumeTimeout)
			defer cancel()
			outcomes[i].breakdown, outcomes[i].err = scorer.ScoreJob(rctx, prepared, scoring.Normalize(doc.Content))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranking cancelled: %w", err)
	}

	report := &types.Report{
		ID:                uuid.NewString(),
		GeneratedAt:       start.UTC(),
		VocabularyVersion: profile.Vocabulary.Version(),
		Provider:          r.provider,
		JobSkills:         nonNil(prepared.Skills),
		Results:           make([]types.RankedResult, 0, len(docs)),
		Failures:          []types.Failure{},
	}

	for i, doc := range docs {
		o := outcomes[i]
		if o.err != nil {
			report.Failures = append(report.Failures, failureFor(doc.Name, o.err))
			r.recorder.RecordResumeScored(ctx, false, 0)
			r.logger.LogError(o.err, "Failed to score resume", "resume", doc.Name)
			continue
		}
		report.Results = append(report.Results, resultFor(doc, o.breakdown, profile.ExperienceCeiling))
		r.recorder.RecordResumeScored(ctx, true, o.breakdown.FinalScore)
	}

	slices.SortStableFunc(report.Results, func(a, b types.RankedResult) int {
		return cmp.Compare(b.FinalScore, a.FinalScore)
	})
	for i := range report.Results {
		report.Results[i].Rank = i + 1
	}
	report.SkillFrequency = SkillFrequency(report.Results)
	report.Duration = r.now().Sub(start)

	r.recorder.RecordRanking(ctx, len(docs), len(report.Failures), report.Duration)
	r.logger.Info("Ranking completed",
		"report_id", report.ID,
		"resumes", len(docs),
		"ranked", len(report.Results),
		"failures", len(report.Failures),
		"duration_ms", report.Duration.Milliseconds())

	return report, nil
}

func resultFor(doc extract.RawDocument, b scoring.ScoreBreakdown, ceiling float64) types.RankedResult {
	return types.RankedResult{
		Name:               doc.Name,
		SemanticSimilarity: b.Similarity,
		RawSimilarity:      b.RawSimilarity,
		SkillFit:           b.SkillFit,
		Years:              b.Years,
		YearsOfExperience:  b.YearsNormalized * ceiling,
		YearsNormalized:    b.YearsNormalized,
		DegreeScore:        b.DegreeScore,
		FinalScore:         b.FinalScore,
		MatchedSkills:      nonNil(b.MatchedSkills),
		Warning:            doc.Warning,
	}
}

func failureFor(name string, err error) types.Failure {
	code := errors.Code(err)
	if code == "" {
		code = errors.ErrCodeSimilarityFailed
	}
	return types.Failure{Name: name, Code: code, Message: err.Error()}
}

// SkillFrequency counts the resumes matching each skill, most frequent
// first and alphabetical among equals.
func SkillFrequency(results []types.RankedResult) []types.SkillCount {
	counts := make(map[string]int)
	for _, res := range results {
		for _, skill := range res.MatchedSkills {
			counts[skill]++
		}
	}

	freq := make([]types.SkillCount, 0, len(counts))
	for skill, n := range counts {
		freq = append(freq, types.SkillCount{Skill: skill, Count: n})
	}
	slices.SortFunc(freq, func(a, b types.SkillCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Skill, b.Skill)
	})
	return freq
}

// DescribeProfile summarises a scoring profile for display.
func DescribeProfile(p *scoring.Profile) types.VocabularyInfo {
	tiers := make([]types.DegreeTierInfo, 0, len(p.DegreeTiers))
	for _, t := range p.DegreeTiers {
		tiers = append(tiers, types.DegreeTierInfo{Name: t.Name, Score: t.Score, Keywords: t.Keywords})
	}
	return types.VocabularyInfo{
		Version:     p.Vocabulary.Version(),
		Skills:      p.Vocabulary.Terms(),
		DegreeTiers: tiers,
		Weights: map[string]float64{
			"similarity": p.Weights.Similarity,
			"skillFit":   p.Weights.SkillFit,
			"experience": p.Weights.Experience,
			"degree":     p.Weights.Degree,
		},
		ExperienceCeiling: p.ExperienceCeiling,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
