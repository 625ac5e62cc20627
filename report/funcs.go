package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/whitecircle/policybot/truncate"
)

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncateRunes,
		"oneLine":  oneLine,
		"plural":   plural,
		"lines":    truncate.ToLines,
		"fence":    fence,
		"join":     strings.Join,
		"indent":   indent,
		"default":  defaultValue,
		"json":     toJSON,
	}
}

// truncateRunes cuts s to maxLen runes, ending with "..." when cut.
// For maxLen <= 3 no ellipsis is added.
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:max(maxLen, 0)])
	}
	return string(runes[:maxLen-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// fence returns a backtick fence that cannot be closed by content in s.
func fence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

func indent(s string, spaces int) string {
	prefix := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// defaultValue returns defaultVal if val is nil or an empty string.
func defaultValue(val, defaultVal any) any {
	if val == nil {
		return defaultVal
	}
	if s, ok := val.(string); ok && s == "" {
		return defaultVal
	}
	return val
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
