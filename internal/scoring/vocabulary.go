package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultVocabularyVersion identifies the built-in skill list.
const DefaultVocabularyVersion = "builtin-v1"

var defaultSkills = []string{
	"python", "java", "c++", "sql", "git", "linux", "docker", "aws", "azure", "gcp",
	"pandas", "numpy", "scikit-learn", "tensorflow", "pytorch", "keras", "nlp",
	"opencv", "power bi", "tableau",
}

// Vocabulary is an ordered, versioned and immutable set of skill terms.
// It is safe for concurrent use.
type Vocabulary struct {
	version  string
	terms    []string
	patterns []*regexp.Regexp
}

// NewVocabulary builds a vocabulary from terms. Terms are lower-cased and
// trimmed; duplicates keep their first position.
func NewVocabulary(version string, terms []string) (*Vocabulary, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("vocabulary version is required")
	}

	seen := make(map[string]bool, len(terms))
	v := &Vocabulary{version: version}
	for i, raw := range terms {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			return nil, fmt.Errorf("vocabulary term %d is empty", i)
		}
		if seen[term] {
			continue
		}
		seen[term] = true

		pattern, err := regexp.Compile(termPattern(term))
		if err != nil {
			return nil, fmt.Errorf("compiling pattern for %q: %w", term, err)
		}
		v.terms = append(v.terms, term)
		v.patterns = append(v.patterns, pattern)
	}

	if len(v.terms) == 0 {
		return nil, fmt.Errorf("vocabulary %s has no terms", version)
	}

	return v, nil
}

// DefaultVocabulary returns the built-in skill vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultVocabularyVersion, defaultSkills)
	if err != nil {
		panic(err) // built-in list is static
	}
	return v
}

// termPattern delimits a term so that the characters on either side are not
// letters, digits or underscores in any script. Unlike \b this also works for
// terms that begin or end with punctuation, such as "c++".
func termPattern(term string) string {
	return `(?:^|[^\pL\pN_])` + regexp.QuoteMeta(term) + `(?:[^\pL\pN_]|$)`
}

// Version returns the vocabulary version label.
func (v *Vocabulary) Version() string {
	return v.version
}

// Terms returns a copy of the terms in vocabulary order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Contains reports whether term is part of the vocabulary.
func (v *Vocabulary) Contains(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, t := range v.terms {
		if t == term {
			return true
		}
	}
	return false
}

// Extract returns the vocabulary terms found in text, in vocabulary order.
// Matching is case-insensitive and exact within word boundaries.
func (v *Vocabulary) Extract(text string) []string {
	lower := strings.ToLower(text)
	found := make([]string, 0)
	for i, pattern := range v.patterns {
		if pattern.MatchString(lower) {
			found = append(found, v.terms[i])
		}
	}
	return found
}
