package dedup

import (
	"context"

	"github.com/nvandessel/neardup/internal/featurize"
)

// TextFilter de-duplicates raw text by featurizing it before checking the
// deduplicator. It is safe for concurrent use.
type TextFilter struct {
	vectorizer *featurize.Vectorizer
	dedup      *Deduplicator
}

// NewTextFilter pairs a vectorizer with a deduplicator.
func NewTextFilter(v *featurize.Vectorizer, d *Deduplicator) *TextFilter {
	return &TextFilter{vectorizer: v, dedup: d}
}

// Vectorizer returns the underlying vectorizer.
func (f *TextFilter) Vectorizer() *featurize.Vectorizer {
	return f.vectorizer
}

// Deduplicator returns the underlying deduplicator.
func (f *TextFilter) Deduplicator() *Deduplicator {
	return f.dedup
}

// IsDuplicate featurizes text and checks it against the deduplicator.
func (f *TextFilter) IsDuplicate(text string) bool {
	return f.dedup.IsDuplicate(f.vectorizer.Vectorize(text))
}

// FilterBatch returns the texts that are not near-duplicates, in order.
func (f *TextFilter) FilterBatch(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if !f.IsDuplicate(t) {
			out = append(out, t)
		}
	}
	return out
}

// FilterLines is FilterStream for text. It has the same ordering, buffering
// and cancellation behavior as Deduplicator.FilterStream.
func (f *TextFilter) FilterLines(ctx context.Context, lines <-chan string) (<-chan string, <-chan error) {
	return filterChan(ctx, f.dedup, lines, f.vectorizer.Vectorize)
}
