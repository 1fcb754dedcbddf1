package featurize

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError via errors.Is.
var ErrInvalidConfig = errors.New("invalid featurizer configuration")

// ConfigError reports an invalid featurizer setting. It is returned before
// any text is processed and is never retryable.
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
