package report

import (
	"fmt"
	"strings"
	"text/template"
)

// Engine renders text templates with the report helper functions.
type Engine struct {
	funcs template.FuncMap
}

// NewEngine creates an engine with the default helper functions.
func NewEngine() *Engine {
	return &Engine{
		funcs: defaultFuncs(),
	}
}

// Render parses tmpl and executes it with data.
func (e *Engine) Render(name, tmpl string, data any) (string, error) {
	t, parseErr := template.New(name).Funcs(e.funcs).Parse(tmpl)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, parseErr)
	}

	var buf strings.Builder
	if execErr := t.Execute(&buf, data); execErr != nil {
		return "", fmt.Errorf("%w: %w", ErrExecute, execErr)
	}

	return buf.String(), nil
}
