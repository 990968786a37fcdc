package enforcer

import (
	"math"
	"strings"
	"unicode"
)

// normalize lowercases s and drops every whitespace rune.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// Matches reports whether the process name contains the rule's pattern,
// ignoring case and whitespace. An empty pattern matches every name.
func (r Rule) Matches(processName string) bool {
	return strings.Contains(normalize(processName), normalize(r.Name))
}

// Match returns the processes selected by rule, in enumeration order.
func Match(rule Rule, procs []ProcessSnapshot) []ProcessSnapshot {
	var out []ProcessSnapshot
	for _, p := range procs {
		if rule.Matches(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

func roundMB(b uint64) int64 {
	return int64(math.Round(float64(b) / MiB))
}
