package scoring

import (
	"fmt"
	"strings"
)

// DegreeTier maps a set of keywords to a degree score.
type DegreeTier struct {
	Name     string   `json:"name" yaml:"name"`
	Score    float64  `json:"score" yaml:"score"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// DegreeTiers is checked in order; the first tier with a matching keyword wins.
type DegreeTiers []DegreeTier

// DefaultDegreeTiers returns the built-in tiers, highest credential first.
// Keywords are matched as plain substrings, so "be " also hits ordinary
// prose such as "will be responsible".
func DefaultDegreeTiers() DegreeTiers {
	return DegreeTiers{
		{Name: "doctorate", Score: 1.0, Keywords: []string{"phd", "ph.d"}},
		{Name: "masters", Score: 0.8, Keywords: []string{"m.tech", "mtech", "masters", "m.sc", "msc"}},
		{Name: "bachelors", Score: 0.6, Keywords: []string{"b.tech", "btech", "b.e", "be "}},
		{Name: "bsc", Score: 0.4, Keywords: []string{"bsc"}},
	}
}

// Score returns the score of the highest tier found in text, or 0.
func (tiers DegreeTiers) Score(text string) float64 {
	lower := strings.ToLower(text)
	for _, tier := range tiers {
		for _, keyword := range tier.Keywords {
			if strings.Contains(lower, keyword) {
				return tier.Score
			}
		}
	}
	return 0
}

// Validate checks that scores lie in [0,1], are non-increasing and that
// every tier has at least one keyword.
func (tiers DegreeTiers) Validate() error {
	if len(tiers) == 0 {
		return fmt.Errorf("at least one degree tier is required")
	}

	prev := 1.0
	for i, tier := range tiers {
		if tier.Score < 0 || tier.Score > 1 {
			return fmt.Errorf("degree tier %d (%s): score %.3f outside [0,1]", i, tier.Name, tier.Score)
		}
		if tier.Score > prev {
			return fmt.Errorf("degree tier %d (%s): score %.3f is higher than the tier before it", i, tier.Name, tier.Score)
		}
		if len(tier.Keywords) == 0 {
			return fmt.Errorf("degree tier %d (%s): no keywords", i, tier.Name)
		}
		for _, kw := range tier.Keywords {
			if kw == "" {
				return fmt.Errorf("degree tier %d (%s): empty keyword", i, tier.Name)
			}
			if kw != strings.ToLower(kw) {
				return fmt.Errorf("degree tier %d (%s): keyword %q must be lower case", i, tier.Name, kw)
			}
		}
		prev = tier.Score
	}
	return nil
}
