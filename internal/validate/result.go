package validate

import "fmt"

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding from a validation phase.
type Diagnostic struct {
	Severity Severity
	// Location is the source position in the target document, "file:line,col".
	Location string
	Message  string
	// Subject optionally names the Terraform address or identifier the
	// diagnostic is about.
	Subject string
}

// String renders the diagnostic in a single line suitable for logs, reports
// and retry prompts.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s", d.Severity, d.Message)
	if d.Location != "" {
		s = d.Location + ": " + s
	}
	if d.Subject != "" {
		s += fmt.Sprintf(" (%s)", d.Subject)
	}
	return s
}

// Result is the outcome of validating one document.
type Result struct {
	Pass        bool
	Diagnostics []Diagnostic
}

// Errors returns only the error-severity diagnostics.
func (r Result) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
