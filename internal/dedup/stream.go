package dedup

import (
	"context"
	"iter"

	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/logging"
)

// FilterStream consumes src one vector at a time and sends every vector that
// is not a duplicate on the returned channel, in source order. Nothing is
// buffered beyond the item in flight.
//
// ctx is checked between items. When it is done, the error channel receives
// one error matching both ErrCanceled and the context's cause, and the output
// channel is closed. A consumer that cancels should receive from the error
// channel before draining the output channel; it then sees no further items.
// When src is closed, both channels are closed and the error channel yields
// nil.
func (d *Deduplicator) FilterStream(ctx context.Context, src <-chan featurize.Vector) (<-chan featurize.Vector, <-chan error) {
	return filterChan(ctx, d, src, func(v featurize.Vector) featurize.Vector { return v })
}

// filterChan runs the stream filter stage over any item type. fingerprint
// maps an item to the vector checked against d.
func filterChan[T any](ctx context.Context, d *Deduplicator, src <-chan T, fingerprint func(T) featurize.Vector) (<-chan T, <-chan error) {
	out := make(chan T)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(out)

		stop := func() {
			err := canceled(ctx)
			d.logCanceled(err)
			errc <- err
		}

		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case item, ok := <-src:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					stop()
					return
				}
				if d.IsDuplicate(fingerprint(item)) {
					continue
				}
				select {
				case out <- item:
				case <-ctx.Done():
					stop()
					return
				}
			}
		}
	}()

	return out, errc
}

// Filter is the pull-based form of FilterStream. It yields each vector of seq
// that is not a duplicate with a nil error. If ctx is done before the next
// item is checked, it yields a single (nil, err) pair with err matching
// ErrCanceled and stops.
func (d *Deduplicator) Filter(ctx context.Context, seq iter.Seq[featurize.Vector]) iter.Seq2[featurize.Vector, error] {
	return func(yield func(featurize.Vector, error) bool) {
		for v := range seq {
			if ctx.Err() != nil {
				err := canceled(ctx)
				d.logCanceled(err)
				yield(nil, err)
				return
			}
			if d.IsDuplicate(v) {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Pipe routes src through d. It is shorthand for d.FilterStream(ctx, src).
func Pipe(ctx context.Context, src <-chan featurize.Vector, d *Deduplicator) (<-chan featurize.Vector, <-chan error) {
	return d.FilterStream(ctx, src)
}

func (d *Deduplicator) logCanceled(err error) {
	d.logger.Debug("stream canceled", "error", err)
	d.decisions.Log(logging.Decision{
		Event:     logging.EventStreamCanceled,
		CacheSize: d.cache.Len(),
		Error:     err.Error(),
	})
}
