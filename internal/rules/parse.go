package rules

import (
	"strings"

	"github.com/Well2333/clashprofile/internal/model"
)

// Parse tokenizes one rule line on commas. Tokens are trimmed; case is kept.
func Parse(line string) model.Rule {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return model.Rule{Raw: line, Tokens: parts}
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
