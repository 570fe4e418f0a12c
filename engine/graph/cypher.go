package graph

import "strings"

// Labels and relationship types cannot be query parameters, so they are
// either backtick-quoted (labels, which carry arbitrary resource type names)
// or reduced to a safe identifier (relationship types).

// escapeName backtick-quotes a name for safe splicing into Cypher. Backticks
// inside the name are doubled.
func escapeName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// labelExpr renders a label set as `:`A`:`B``.
func labelExpr(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteByte(':')
		b.WriteString(escapeName(l))
	}
	return b.String()
}

// sanitizeRelType reduces a relationship type to a valid uppercase Cypher
// identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
