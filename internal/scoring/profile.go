package scoring

import (
	"fmt"
	"math"
	"strings"

	"resumerank/internal/config"
)

// DefaultExperienceCeiling is the number of years at which the experience
// component saturates.
const DefaultExperienceCeiling = 8.0

const weightSumTolerance = 1e-6

// Weights are the coefficients of the final linear combination.
type Weights struct {
	Similarity float64 `json:"similarity"`
	SkillFit   float64 `json:"skillFit"`
	Experience float64 `json:"experience"`
	Degree     float64 `json:"degree"`
}

// DefaultWeights returns 0.55 / 0.25 / 0.12 / 0.08.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.55, SkillFit: 0.25, Experience: 0.12, Degree: 0.08}
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for name, value := range map[string]float64{
		"similarity": w.Similarity,
		"skillFit":   w.SkillFit,
		"experience": w.Experience,
		"degree":     w.Degree,
	} {
		if value < 0 || math.IsNaN(value) {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, value)
		}
	}

	sum := w.Similarity + w.SkillFit + w.Experience + w.Degree
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Profile bundles everything that determines a score apart from the
// similarity engine. A Profile is never mutated after construction.
type Profile struct {
	Vocabulary        *Vocabulary
	DegreeTiers       DegreeTiers
	Weights           Weights
	ExperienceCeiling float64
}

// DefaultProfile returns the built-in vocabulary, tiers, weights and ceiling.
func DefaultProfile() *Profile {
	return &Profile{
		Vocabulary:        DefaultVocabulary(),
		DegreeTiers:       DefaultDegreeTiers(),
		Weights:           DefaultWeights(),
		ExperienceCeiling: DefaultExperienceCeiling,
	}
}

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if p.Vocabulary == nil {
		return fmt.Errorf("profile has no vocabulary")
	}
	if err := p.DegreeTiers.Validate(); err != nil {
		return err
	}
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if p.ExperienceCeiling <= 0 || math.IsNaN(p.ExperienceCeiling) {
		return fmt.Errorf("experience ceiling must be positive, got %v", p.ExperienceCeiling)
	}
	return nil
}

// ProfileFromConfig builds a profile from the scoring configuration. When a
// profile file is configured its skills and degree tiers replace the
// built-in ones.
func ProfileFromConfig(cfg config.ScoringConfig) (*Profile, error) {
	profile := DefaultProfile()
	profile.Weights = Weights{
		Similarity: cfg.Weights.Similarity,
		SkillFit:   cfg.Weights.SkillFit,
		Experience: cfg.Weights.Experience,
		Degree:     cfg.Weights.Degree,
	}
	if cfg.ExperienceCeilingYears != 0 {
		profile.ExperienceCeiling = cfg.ExperienceCeilingYears
	}

	if strings.TrimSpace(cfg.ProfileFile) != "" {
		doc, err := config.LoadProfileDocument(cfg.ProfileFile)
		if err != nil {
			return nil, err
		}
		if err := applyProfileDocument(profile, doc); err != nil {
			return nil, fmt.Errorf("profile %s: %w", cfg.ProfileFile, err)
		}
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func applyProfileDocument(profile *Profile, doc *config.ProfileDocument) error {
	vocabulary, err := NewVocabulary(doc.Version, doc.Skills)
	if err != nil {
		return err
	}
	profile.Vocabulary = vocabulary

	if len(doc.DegreeTiers) > 0 {
		tiers := make(DegreeTiers, 0, len(doc.DegreeTiers))
		for _, t := range doc.DegreeTiers {
			keywords := make([]string, 0, len(t.Keywords))
			for _, kw := range t.Keywords {
				keywords = append(keywords, strings.ToLower(kw))
			}
			tiers = append(tiers, DegreeTier{Name: t.Name, Score: t.Score, Keywords: keywords})
		}
		profile.DegreeTiers = tiers
	}
	return nil
}
