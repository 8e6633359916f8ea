package actuator

import (
	"errors"
	"fmt"
)

// Domain errors for the actuator package.
//
//	if errors.Is(err, actuator.ErrConfigLookup) {
//	    // unknown or malformed relay topic
//	}
var (
	// ErrConfigLookup is matched by every *ConfigLookupError.
	ErrConfigLookup = errors.New("actuator: no usable switch config")

	// ErrTransport wraps publish failures.
	ErrTransport = errors.New("actuator: transport failed")
)

// ConfigLookupError reports a trigger for a topic that is absent from the
// current mapping or whose entry is malformed. Nothing is published.
type ConfigLookupError struct {
	Topic  string
	Reason string
}

func (e *ConfigLookupError) Error() string {
	return fmt.Sprintf("%s for %q: %s", ErrConfigLookup, e.Topic, e.Reason)
}

// Is makes errors.Is(err, ErrConfigLookup) true.
func (e *ConfigLookupError) Is(target error) bool {
	return target == ErrConfigLookup
}
