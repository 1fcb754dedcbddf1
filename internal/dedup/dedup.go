// Package dedup filters near-duplicate feature vectors out of batches and
// streams using a bounded similarity cache.
//
// A Deduplicator owns its cache. Producers that should share de-duplication
// state share one *Deduplicator; callers that want isolation construct one per
// logical stream.
package dedup

import (
	"context"
	"log/slog"
	"math"

	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/logging"
)

// Config configures a Deduplicator.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity for a vector to be
	// considered a duplicate of a cached one.
	// Range: 0.0 to 1.0, default: 0.95
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// MaxCacheSize is the maximum number of representative vectors retained.
	// Must be positive, default: 1000
	MaxCacheSize int `json:"max_cache_size" yaml:"max_cache_size"`

	// EvictionPolicy selects which entry is evicted when the cache is full.
	// Valid values: "fifo" (default), "lru"
	EvictionPolicy constants.EvictionPolicy `json:"eviction_policy,omitempty" yaml:"eviction_policy,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: constants.DefaultSimilarityThreshold,
		MaxCacheSize:        constants.DefaultMaxCacheSize,
		EvictionPolicy:      constants.DefaultEvictionPolicy,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	t := c.SimilarityThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return &ConfigError{Field: "similarity_threshold", Value: t, Reason: "must be between 0 and 1"}
	}
	if c.MaxCacheSize <= 0 {
		return &ConfigError{Field: "max_cache_size", Value: c.MaxCacheSize, Reason: "must be positive"}
	}
	if c.EvictionPolicy != "" && !c.EvictionPolicy.Valid() {
		return &ConfigError{Field: "eviction_policy", Value: c.EvictionPolicy, Reason: "must be fifo or lru"}
	}
	return nil
}

// Option customizes a Deduplicator.
type Option func(*Deduplicator)

// WithLogger sets the operational logger. Cache decisions are logged at
// debug level.
func WithLogger(l *slog.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDecisionLogger enables JSONL tracing of every cache decision.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(d *Deduplicator) {
		d.decisions = dl
	}
}

// Deduplicator detects near-duplicate vectors against everything it has
// admitted so far. It is safe for concurrent use.
type Deduplicator struct {
	cfg       Config
	cache     *Cache
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New validates cfg and returns an empty Deduplicator. An invalid cfg yields a
// *ConfigError and no instance.
func New(cfg Config, opts ...Option) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EvictionPolicy == "" {
		cfg.EvictionPolicy = constants.DefaultEvictionPolicy
	}
	cache, err := newCache(cfg)
	if err != nil {
		return nil, err
	}

	d := &Deduplicator{
		cfg:    cfg,
		cache:  cache,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the configuration the Deduplicator was built with.
func (d *Deduplicator) Config() Config {
	return d.cfg
}

// IsDuplicate reports whether vec is a near-duplicate of a previously admitted
// vector. A vector that is not a duplicate is admitted, so the same vector
// presented twice is reported as a duplicate the second time. vec must not be
// modified after the call.
func (d *Deduplicator) IsDuplicate(vec featurize.Vector) bool {
	res := d.cache.check(vec)
	d.trace(res)
	return res.duplicate
}

// FilterBatch returns the vectors of vecs that are not duplicates, in input
// order. Vectors later in the batch are checked against earlier ones.
func (d *Deduplicator) FilterBatch(vecs []featurize.Vector) []featurize.Vector {
	out := make([]featurize.Vector, 0, len(vecs))
	for _, v := range vecs {
		if !d.IsDuplicate(v) {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of cached representative vectors.
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}

// Stats returns cache statistics.
func (d *Deduplicator) Stats() CacheStats {
	return d.cache.Stats()
}

// Reset forgets every admitted vector.
func (d *Deduplicator) Reset() {
	d.cache.Clear()
	d.logger.Debug("cache cleared")
	d.decisions.Log(logging.Decision{
		Event:  logging.EventCacheClear,
		Policy: d.cfg.EvictionPolicy.String(),
	})
}

func (d *Deduplicator) trace(res checkResult) {
	if res.duplicate {
		d.logger.Debug("duplicate detected",
			"match_seq", res.matchSeq, "similarity", res.similarity, "threshold", d.cfg.SimilarityThreshold)
		d.decisions.Log(logging.Decision{
			Event:      logging.EventCacheHit,
			MatchSeq:   res.matchSeq,
			Similarity: res.similarity,
			Threshold:  d.cfg.SimilarityThreshold,
			CacheSize:  res.size,
			Policy:     d.cfg.EvictionPolicy.String(),
		})
		return
	}

	if res.evictedSeq != 0 {
		d.logger.Log(context.Background(), logging.LevelTrace, "entry evicted", "seq", res.evictedSeq)
		d.decisions.Log(logging.Decision{
			Event:     logging.EventCacheEvict,
			Seq:       res.evictedSeq,
			CacheSize: res.size,
			Policy:    d.cfg.EvictionPolicy.String(),
		})
	}
	d.logger.Log(context.Background(), logging.LevelTrace, "entry inserted", "seq", res.seq, "cache_size", res.size)
	d.decisions.Log(logging.Decision{
		Event:     logging.EventCacheInsert,
		Seq:       res.seq,
		Threshold: d.cfg.SimilarityThreshold,
		CacheSize: res.size,
		Policy:    d.cfg.EvictionPolicy.String(),
	})
}
