package report

import "errors"

// Sentinel errors for rendering.
var (
	// ErrParse is returned when a template fails to parse.
	ErrParse = errors.New("report template parse error")

	// ErrExecute is returned when template execution fails.
	ErrExecute = errors.New("report template execution error")
)
