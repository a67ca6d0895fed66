package shared

import "fmt"

// ValidationError is a business-rule rejection that names the rule, so API
// responses and logs can point at the exact check that failed rather than a
// generic message.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// NewValidationError builds a ValidationError for the named rule.
func NewValidationError(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}
