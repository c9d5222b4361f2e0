package rulesearch

import "fmt"

// ConfigurationError reports an invalid search configuration detected before
// any trial runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
