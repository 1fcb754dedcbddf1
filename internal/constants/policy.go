package constants

// EvictionPolicy selects how the similarity cache picks an entry to evict
// when it is full.
type EvictionPolicy string

const (
	// PolicyFIFO evicts the earliest-inserted entry. Cache hits do not
	// change eviction order.
	PolicyFIFO EvictionPolicy = "fifo"

	// PolicyLRU evicts the least-recently matched entry. A cache hit moves
	// the matched entry to the most-recent position.
	PolicyLRU EvictionPolicy = "lru"
)

// DefaultEvictionPolicy is used when no policy is configured.
const DefaultEvictionPolicy = PolicyFIFO

// Valid returns true if the policy is a recognized value.
func (p EvictionPolicy) Valid() bool {
	switch p {
	case PolicyFIFO, PolicyLRU:
		return true
	}
	return false
}

// String returns the string representation of the policy.
func (p EvictionPolicy) String() string {
	return string(p)
}
