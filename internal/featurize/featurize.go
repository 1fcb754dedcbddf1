// Package featurize turns arbitrary text into deterministic, fixed-length,
// L2-normalized feature vectors using lexical tokenization and signed feature
// hashing.
//
// Every function in this package is pure: identical inputs produce
// bit-identical vectors on every run and every machine, and all functions are
// safe for concurrent use without synchronization.
package featurize

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/vecmath"
)

// Vector is a fixed-length feature vector. Vectors derived from text with at
// least one token have unit L2 norm; text without tokens yields the zero
// vector. Vectors must not be modified once handed to a deduplicator.
type Vector []float32

// Feature is the hashed form of a single normalized token.
type Feature struct {
	Index int
	Sign  float32
}

// Options configures a Vectorizer.
type Options struct {
	// Dimension is the vector length. Must be positive; powers of two are
	// recommended.
	Dimension int `json:"dimension" yaml:"dimension"`

	// NormalizeIdentifiers lowercases non-keyword tokens before hashing.
	NormalizeIdentifiers bool `json:"normalize_identifiers" yaml:"normalize_identifiers"`
}

// DefaultOptions returns Options with the default dimension and case-sensitive
// identifiers.
func DefaultOptions() Options {
	return Options{
		Dimension:            constants.DefaultDimension,
		NormalizeIdentifiers: false,
	}
}

// Validate checks that the options describe a usable featurizer.
func (o Options) Validate() error {
	return validateDimension(o.Dimension)
}

func validateDimension(dim int) error {
	if dim <= 0 {
		return &ConfigError{Field: "dimension", Value: dim, Reason: "must be positive"}
	}
	if dim > constants.MaxDimension {
		return &ConfigError{Field: "dimension", Value: dim, Reason: fmt.Sprintf("must not exceed %d", constants.MaxDimension)}
	}
	return nil
}

// HashToken maps a normalized token to its feature index and sign.
//
// The token is hashed with xxHash64 under constants.HashSeed. The index comes
// from the low 32 bits and the sign from bit 63, so the two are drawn from
// independent halves of the hash. dim must be positive.
func HashToken(tok string, dim int) Feature {
	d := xxhash.NewWithSeed(constants.HashSeed)
	_, _ = d.WriteString(tok)
	h := d.Sum64()

	f := Feature{
		Index: int(uint32(h) % uint32(dim)),
		Sign:  1,
	}
	if h>>63 == 1 {
		f.Sign = -1
	}
	return f
}

// Vectorize produces the feature vector of text.
//
// Tokens are case-normalized, hashed into dim buckets and accumulated with
// their sign, so repeated tokens add up. The result is scaled to unit norm
// unless it is the zero vector. A non-positive dim is rejected with a
// *ConfigError before any hashing takes place.
func Vectorize(text string, dim int, normalizeIdentifiers bool) (Vector, error) {
	if err := validateDimension(dim); err != nil {
		return nil, err
	}
	return vectorize(text, dim, normalizeIdentifiers), nil
}

func vectorize(text string, dim int, normalizeIdentifiers bool) Vector {
	vec := make(Vector, dim)
	eachToken(text, func(tok string) {
		f := HashToken(NormalizeToken(tok, normalizeIdentifiers), dim)
		vec[f.Index] += f.Sign
	})
	vecmath.Normalize(vec)
	return vec
}

// Vectorizer is a validated featurizer configuration. The zero value is not
// usable; construct one with New.
type Vectorizer struct {
	opts Options
}

// New validates opts and returns a Vectorizer.
func New(opts Options) (*Vectorizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Vectorizer{opts: opts}, nil
}

// Options returns the configuration the Vectorizer was built with.
func (v *Vectorizer) Options() Options {
	return v.opts
}

// Dimension returns the length of the vectors produced by v.
func (v *Vectorizer) Dimension() int {
	return v.opts.Dimension
}

// Vectorize returns the feature vector of text.
func (v *Vectorizer) Vectorize(text string) Vector {
	return vectorize(text, v.opts.Dimension, v.opts.NormalizeIdentifiers)
}

// VectorizeAll vectorizes texts in order, checking ctx between items.
// On cancellation it returns the context error and no vectors.
func (v *Vectorizer) VectorizeAll(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = v.Vectorize(text)
	}
	return out, nil
}
