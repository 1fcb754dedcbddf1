package mcp

import (
	"github.com/nvandessel/neardup/internal/dedup"
)

// VectorizeInput defines the input for the neardup_vectorize tool.
type VectorizeInput struct {
	Text string `json:"text" jsonschema:"Text to featurize"`
}

// VectorizeOutput defines the output for the neardup_vectorize tool.
// Only non-zero components are listed.
type VectorizeOutput struct {
	Dimension  int              `json:"dimension" jsonschema:"Length of the full feature vector"`
	Nonzero    int              `json:"nonzero" jsonschema:"Number of non-zero components"`
	Components []ComponentValue `json:"components" jsonschema:"Non-zero components in index order"`
}

// ComponentValue is a single non-zero vector component.
type ComponentValue struct {
	Index int     `json:"index"`
	Value float32 `json:"value"`
}

// CheckInput defines the input for the neardup_check tool.
type CheckInput struct {
	Text string `json:"text" jsonschema:"Text to check against previously seen texts; admitted when not a duplicate"`
}

// CheckOutput defines the output for the neardup_check tool.
type CheckOutput struct {
	Duplicate bool `json:"duplicate" jsonschema:"Whether the text is a near-duplicate of a previously admitted text"`
	CacheSize int  `json:"cache_size" jsonschema:"Number of cached representatives after the check"`
}

// FilterInput defines the input for the neardup_filter tool.
type FilterInput struct {
	Texts []string `json:"texts" jsonschema:"Texts to filter in order; later texts are checked against earlier ones"`
}

// FilterOutput defines the output for the neardup_filter tool.
type FilterOutput struct {
	Retained []string `json:"retained" jsonschema:"Texts that are not near-duplicates, in input order"`
	Indices  []int    `json:"indices" jsonschema:"Input positions of the retained texts"`
	Dropped  int      `json:"dropped" jsonschema:"Number of texts dropped as near-duplicates"`
}

// CompareInput defines the input for the neardup_compare tool.
type CompareInput struct {
	A string `json:"a" jsonschema:"First text"`
	B string `json:"b" jsonschema:"Second text"`
}

// CompareOutput defines the output for the neardup_compare tool.
type CompareOutput struct {
	Similarity float64 `json:"similarity" jsonschema:"Cosine similarity of the two fingerprints (-1.0 to 1.0)"`
	Threshold  float64 `json:"threshold" jsonschema:"Configured duplicate threshold"`
	Duplicate  bool    `json:"duplicate" jsonschema:"Whether the similarity meets the threshold"`
}

// StatsInput defines the input for the neardup_stats tool.
type StatsInput struct{}

// StatsOutput defines the output for the neardup_stats tool.
type StatsOutput struct {
	Stats     dedup.CacheStats `json:"stats" jsonschema:"Cache size and hit/miss/eviction counters"`
	Threshold float64          `json:"threshold" jsonschema:"Configured duplicate threshold"`
	Dimension int              `json:"dimension" jsonschema:"Feature vector length"`
}

// ResetInput defines the input for the neardup_reset tool.
type ResetInput struct{}

// ResetOutput defines the output for the neardup_reset tool.
type ResetOutput struct {
	Cleared int    `json:"cleared" jsonschema:"Number of cached representatives discarded"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}
