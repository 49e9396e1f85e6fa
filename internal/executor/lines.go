package executor

import (
	"sort"
	"strings"
)

// Lines splits tool output into trimmed lines, dropping empty ones.
func Lines(data []byte) []string {
	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Unique removes duplicates, keeping the first occurrence of each line.
func Unique(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// SortedUnique returns the distinct lines in lexical order.
func SortedUnique(lines []string) []string {
	out := Unique(lines)
	sort.Strings(out)
	return out
}
