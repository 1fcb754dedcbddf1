package dedup

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError via errors.Is.
var ErrInvalidConfig = errors.New("invalid deduplicator configuration")

// ErrCanceled reports that stream filtering stopped before its source was
// exhausted. Errors returned on cancellation also match the context's cause,
// e.g. context.Canceled or context.DeadlineExceeded.
var ErrCanceled = errors.New("stream filtering canceled")

// ConfigError reports an invalid deduplicator setting. It is returned from
// constructors only, so no instance ever exists in an invalid state.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) succeed.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// canceled builds the error surfaced when ctx stops a stream.
func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
}
