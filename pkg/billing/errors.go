package billing

import "fmt"

// ConfigurationError reports bad or missing user input. It is fatal and
// never retried.
type ConfigurationError struct {
	Field string
	Msg   string
}

// NewConfigurationError builds a ConfigurationError for the given field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// ErrNoThresholds is returned when thresholds mode has nothing to compare against.
var ErrNoThresholds = &ConfigurationError{Msg: "no thresholds provided in thresholds mode"}
