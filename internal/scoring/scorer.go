package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	resumerankErrors "resumerank/internal/errors"
)

// rawSimilarityTolerance absorbs floating point error in cosine similarity.
const rawSimilarityTolerance = 1e-6

// TextSimilarity compares two texts and returns a cosine similarity in [-1,1].
// Implementations must be safe for concurrent use and deterministic for
// identical inputs.
type TextSimilarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Features are the rule-based signals extracted from one text.
type Features struct {
	MatchedSkills []string `json:"matchedSkills"`
	Years         int      `json:"years"`
	DegreeScore   float64  `json:"degreeScore"`
}

// Job is a job description prepared once per ranking.
type Job struct {
	Text   string   `json:"-"`
	Skills []string `json:"skills"`
}

// ScoreBreakdown carries every component of a final score.
type ScoreBreakdown struct {
	RawSimilarity   float64  `json:"rawSimilarity"`
	Similarity      float64  `json:"semanticSimilarity"`
	SkillFit        float64  `json:"skillFit"`
	Years           int      `json:"yearsOfExperience"`
	YearsNormalized float64  `json:"yearsNormalized"`
	DegreeScore     float64  `json:"degreeScore"`
	FinalScore      float64  `json:"finalScore"`
	MatchedSkills   []string `json:"matchedSkills"`
}

// Scorer combines a profile with a similarity engine.
type Scorer struct {
	profile    *Profile
	similarity TextSimilarity
}

// NewScorer validates the profile and returns a scorer.
func NewScorer(profile *Profile, similarity TextSimilarity) (*Scorer, error) {
	if err := profile.Validate(); err != nil {
		return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeInvalidProfile,
			"invalid scoring profile", err)
	}
	if similarity == nil {
		return nil, resumerankErrors.NewConfigError(resumerankErrors.ErrCodeInvalidConfig,
			"similarity engine is required", nil)
	}
	return &Scorer{profile: profile, similarity: similarity}, nil
}

// Profile returns the profile the scorer was built with.
func (s *Scorer) Profile() *Profile {
	return s.profile
}

// ExtractFeatures extracts skills, years and degree score from text.
func (s *Scorer) ExtractFeatures(text string) Features {
	return Features{
		MatchedSkills: s.profile.Vocabulary.Extract(text),
		Years:         ExtractYears(text),
		DegreeScore:   s.profile.DegreeTiers.Score(text),
	}
}

// PrepareJob extracts the job description's skills.
func (s *Scorer) PrepareJob(text string) Job {
	return Job{Text: text, Skills: s.profile.Vocabulary.Extract(text)}
}

// Score scores resume against job. See ScoreJob.
func (s *Scorer) Score(ctx context.Context, job, resume string) (ScoreBreakdown, error) {
	return s.ScoreJob(ctx, s.PrepareJob(job), resume)
}

// ScoreJob scores resume against a prepared job description. Similarity
// failures are returned as similarity errors; a component outside [0,1]
// is returned as an internal error.
func (s *Scorer) ScoreJob(ctx context.Context, job Job, resume string) (ScoreBreakdown, error) {
	raw, err := s.similarity.Similarity(ctx, job.Text, resume)
	if err != nil {
		return ScoreBreakdown{}, similarityError(ctx, err)
	}
	if math.IsNaN(raw) || raw < -1-rawSimilarityTolerance || raw > 1+rawSimilarityTolerance {
		return ScoreBreakdown{}, outOfRange("rawSimilarity", raw)
	}
	raw = clamp(raw, -1, 1)

	features := s.ExtractFeatures(resume)
	w := s.profile.Weights

	b := ScoreBreakdown{
		RawSimilarity:   raw,
		Similarity:      (raw + 1) / 2,
		SkillFit:        skillFit(job.Skills, features.MatchedSkills),
		Years:           features.Years,
		YearsNormalized: math.Min(1, float64(features.Years)/s.profile.ExperienceCeiling),
		DegreeScore:     features.DegreeScore,
		MatchedSkills:   features.MatchedSkills,
	}
	b.FinalScore = w.Similarity*b.Similarity +
		w.SkillFit*b.SkillFit +
		w.Experience*b.YearsNormalized +
		w.Degree*b.DegreeScore

	if err := b.checkRanges(); err != nil {
		return ScoreBreakdown{}, err
	}
	b.FinalScore = math.Min(1, b.FinalScore)
	return b, nil
}

// skillFit is the fraction of job skills present in the resume. A job with
// no recognised skills yields 0.
func skillFit(jobSkills, resumeSkills []string) float64 {
	if len(jobSkills) == 0 {
		return 0
	}
	have := make(map[string]bool, len(resumeSkills))
	for _, s := range resumeSkills {
		have[s] = true
	}
	matched := 0
	for _, s := range jobSkills {
		if have[s] {
			matched++
		}
	}
	return float64(matched) / float64(len(jobSkills))
}

func (b ScoreBreakdown) checkRanges() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"semanticSimilarity", b.Similarity},
		{"skillFit", b.SkillFit},
		{"yearsNormalized", b.YearsNormalized},
		{"degreeScore", b.DegreeScore},
		{"finalScore", b.FinalScore},
	} {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 1+rawSimilarityTolerance {
			return outOfRange(c.name, c.value)
		}
	}
	return nil
}

func outOfRange(component string, value float64) error {
	return resumerankErrors.NewInternalError(resumerankErrors.ErrCodeScoreOutOfRange,
		fmt.Sprintf("%s = %v is outside its valid range", component, value), nil).
		WithContext("component", component)
}

func similarityError(ctx context.Context, err error) error {
	var appErr *resumerankErrors.AppError
	if errors.As(err, &appErr) && appErr.Type == resumerankErrors.ErrorTypeSimilarity {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resumerankErrors.NewSimilarityError(resumerankErrors.ErrCodeSimilarityTimeout,
			"similarity computation timed out", err)
	}
	return resumerankErrors.NewSimilarityError(resumerankErrors.ErrCodeSimilarityFailed,
		"similarity computation failed", err)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
