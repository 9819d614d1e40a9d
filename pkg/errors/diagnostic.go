package errors

import "fmt"

// Diagnostic records a non-fatal condition observed during analysis.
// Diagnostics are accumulated and reported alongside results instead of
// aborting the run: an unreadable file, an unparsable module, or a route
// whose handler could not be matched all degrade the output without
// losing the derivable parts.
type Diagnostic struct {
	Code    Code   `json:"code" bson:"code"`
	File    string `json:"file,omitempty" bson:"file,omitempty"`
	Subject string `json:"subject,omitempty" bson:"subject,omitempty"`
	Message string `json:"message" bson:"message"`
}

// Diag creates a diagnostic with a formatted message.
func Diag(code Code, file string, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:    code,
		File:    file,
		Message: fmt.Sprintf(format, args...),
	}
}

// String formats the diagnostic for log output.
func (d Diagnostic) String() string {
	if d.File != "" {
		return fmt.Sprintf("%s %s: %s", d.Code, d.File, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}
