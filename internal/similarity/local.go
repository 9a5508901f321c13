package similarity

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const defaultLocalDimensions = 1024

// HashingProvider embeds text offline with signed feature hashing over word
// unigrams and bigrams. Output is deterministic and L2-normalised.
type HashingProvider struct {
	dims int
}

var _ Provider = (*HashingProvider)(nil)

// NewHashingProvider returns a provider producing vectors of dims entries.
// A non-positive dims selects the default.
func NewHashingProvider(dims int) *HashingProvider {
	if dims <= 0 {
		dims = defaultLocalDimensions
	}
	return &HashingProvider{dims: dims}
}

func (p *HashingProvider) Name() string  { return "local" }
func (p *HashingProvider) Model() string { return "feature-hashing" }
func (p *HashingProvider) Close() error  { return nil }

// Embed returns the hashed feature vector of text. Empty text yields the
// zero vector.
func (p *HashingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		p.add(vec, tok, 1)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (p *HashingProvider) add(vec []float32, feature string, weight float32) {
	sum := xxhash.Sum64String(feature)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[sum%uint64(len(vec))] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter,
// digit, '+' or '#', so that "c++" and "c#" survive as tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
