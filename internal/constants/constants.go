// Package constants provides named constants used throughout the neardup codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Featurizer constants
const (
	// DefaultDimension is the default length of a feature vector.
	// Powers of two keep the modulo reduction of hash values unbiased.
	DefaultDimension = 4096

	// MaxDimension bounds the dimension accepted from configuration.
	// A single 2^20 vector is 4 MiB of float32 components.
	MaxDimension = 1 << 20

	// HashSeed is the fixed xxHash64 seed used for feature hashing.
	// Changing it changes every fingerprint; vectors produced under different
	// seeds are not comparable.
	HashSeed uint64 = 0x6e656172
)

// Deduplication constants
const (
	// DefaultSimilarityThreshold is the cosine similarity at or above which
	// two fingerprints are considered duplicates.
	DefaultSimilarityThreshold = 0.95

	// DefaultMaxCacheSize is the default number of representative
	// fingerprints retained by the similarity cache.
	DefaultMaxCacheSize = 1000
)

// MCP server constants
const (
	// MaxFilterBatch is the maximum number of texts accepted by a single
	// neardup_filter tool call.
	MaxFilterBatch = 1000

	// MaxTextLength is the maximum length in bytes of a single text accepted
	// by the MCP tools.
	MaxTextLength = 1 << 20
)
