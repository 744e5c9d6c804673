package cfn

import "fmt"

// ParseError is the fatal error for malformed or unresolvable templates.
// It is raised before any model invocation can happen.
type ParseError struct {
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return "template parse error: " + e.Message
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}
