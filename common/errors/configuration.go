package errors

import "fmt"

// ConfigurationError reports a run request that cannot be assembled: no
// matching worker factory, several matching factories, or a worker graph
// that can never start. Nothing has been started when one is returned.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError is true if err or anything in its Cause chain is a ConfigurationError.
func IsConfigurationError(err error) bool {
	for err != nil {
		if _, ok := err.(*ConfigurationError); ok {
			return true
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}
