package dedup

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/vecmath"
)

// entry is one cached representative fingerprint.
type entry struct {
	vec  featurize.Vector
	norm float64
	seq  uint64
}

// entryStore holds cache entries in eviction order. Implementations are not
// safe for concurrent use; Cache serializes access.
type entryStore interface {
	// scan visits entries from oldest to newest in eviction order until fn
	// returns true, and returns the entry it stopped at, or nil.
	scan(fn func(e *entry) bool) *entry
	// hit records that e matched a lookup.
	hit(e *entry)
	// add inserts e, evicting the oldest entry when full. It returns the
	// evicted entry, or nil.
	add(e *entry) *entry
	len() int
	reset()
}

// CacheStats is a point-in-time summary of cache activity.
type CacheStats struct {
	Size      int                      `json:"size" yaml:"size"`
	Capacity  int                      `json:"capacity" yaml:"capacity"`
	Hits      uint64                   `json:"hits" yaml:"hits"`
	Misses    uint64                   `json:"misses" yaml:"misses"`
	Evictions uint64                   `json:"evictions" yaml:"evictions"`
	Policy    constants.EvictionPolicy `json:"policy" yaml:"policy"`
}

// checkResult describes the outcome of a single Check for tracing.
type checkResult struct {
	duplicate  bool
	similarity float64
	matchSeq   uint64
	seq        uint64
	evictedSeq uint64
	size       int
}

// Cache is a bounded set of previously seen fingerprints. A lookup that finds
// no cached fingerprint within the similarity threshold inserts the probe as a
// new representative. When the cache is full the oldest entry is evicted, or
// the least recently matched one under PolicyLRU.
//
// Cache is safe for concurrent use. Every Check holds a single mutex for the
// whole scan-then-insert sequence.
type Cache struct {
	mu        sync.Mutex
	threshold float64
	capacity  int
	policy    constants.EvictionPolicy
	store     entryStore
	nextSeq   uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCache creates an empty cache. threshold must lie in [0, 1], maxSize must
// be positive and policy must be valid; an empty policy selects the default.
func NewCache(threshold float64, maxSize int, policy constants.EvictionPolicy) (*Cache, error) {
	cfg := Config{SimilarityThreshold: threshold, MaxCacheSize: maxSize, EvictionPolicy: policy}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newCache(cfg)
}

func newCache(cfg Config) (*Cache, error) {
	policy := cfg.EvictionPolicy
	if policy == "" {
		policy = constants.DefaultEvictionPolicy
	}

	var store entryStore
	switch policy {
	case constants.PolicyLRU:
		s, err := newLRUStore(cfg.MaxCacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating lru store: %w", err)
		}
		store = s
	default:
		store = newFIFOStore(cfg.MaxCacheSize)
	}

	return &Cache{
		threshold: cfg.SimilarityThreshold,
		capacity:  cfg.MaxCacheSize,
		policy:    policy,
		store:     store,
	}, nil
}

// Check reports whether vec is within the similarity threshold of any cached
// fingerprint. On a miss vec is inserted; the caller must not modify it
// afterwards.
func (c *Cache) Check(vec featurize.Vector) bool {
	return c.check(vec).duplicate
}

func (c *Cache) check(vec featurize.Vector) checkResult {
	norm := vecmath.Norm(vec)

	c.mu.Lock()
	defer c.mu.Unlock()

	var sim float64
	match := c.store.scan(func(e *entry) bool {
		if len(e.vec) != len(vec) {
			return false
		}
		sim = vecmath.CosineWithNorms(vec, e.vec, norm, e.norm)
		return sim >= c.threshold
	})
	if match != nil {
		c.hits++
		c.store.hit(match)
		return checkResult{
			duplicate:  true,
			similarity: sim,
			matchSeq:   match.seq,
			size:       c.store.len(),
		}
	}

	c.misses++
	c.nextSeq++
	res := checkResult{seq: c.nextSeq}
	if evicted := c.store.add(&entry{vec: vec, norm: norm, seq: c.nextSeq}); evicted != nil {
		c.evictions++
		res.evictedSeq = evicted.seq
	}
	res.size = c.store.len()
	return res
}

// Len returns the number of cached fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.len()
}

// Clear removes every cached fingerprint. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.reset()
}

// Stats returns the current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      c.store.len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Policy:    c.policy,
	}
}

// fifoStore is a ring buffer in insertion order. Hits do not reorder it.
type fifoStore struct {
	entries []*entry
	head    int
	n       int
}

func newFIFOStore(capacity int) *fifoStore {
	return &fifoStore{entries: make([]*entry, capacity)}
}

func (s *fifoStore) scan(fn func(e *entry) bool) *entry {
	for i := 0; i < s.n; i++ {
		e := s.entries[(s.head+i)%len(s.entries)]
		if fn(e) {
			return e
		}
	}
	return nil
}

func (s *fifoStore) hit(*entry) {}

func (s *fifoStore) add(e *entry) *entry {
	if s.n < len(s.entries) {
		s.entries[(s.head+s.n)%len(s.entries)] = e
		s.n++
		return nil
	}
	evicted := s.entries[s.head]
	s.entries[s.head] = e
	s.head = (s.head + 1) % len(s.entries)
	return evicted
}

func (s *fifoStore) len() int { return s.n }

func (s *fifoStore) reset() {
	clear(s.entries)
	s.head = 0
	s.n = 0
}

// lruStore orders entries by last match. Scans use Peek semantics so only an
// actual hit changes recency.
type lruStore struct {
	lru     *simplelru.LRU[uint64, *entry]
	evicted *entry
}

func newLRUStore(capacity int) (*lruStore, error) {
	s := &lruStore{}
	l, err := simplelru.NewLRU[uint64, *entry](capacity, func(_ uint64, e *entry) {
		s.evicted = e
	})
	if err != nil {
		return nil, err
	}
	s.lru = l
	return s, nil
}

func (s *lruStore) scan(fn func(e *entry) bool) *entry {
	for _, e := range s.lru.Values() {
		if fn(e) {
			return e
		}
	}
	return nil
}

func (s *lruStore) hit(e *entry) {
	s.lru.Get(e.seq)
}

func (s *lruStore) add(e *entry) *entry {
	s.evicted = nil
	s.lru.Add(e.seq, e)
	evicted := s.evicted
	s.evicted = nil
	return evicted
}

func (s *lruStore) len() int { return s.lru.Len() }

func (s *lruStore) reset() {
	// Purge runs the eviction callback; drop what it records.
	s.lru.Purge()
	s.evicted = nil
}
