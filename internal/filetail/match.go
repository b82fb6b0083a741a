package filetail

import "strings"

// Predicate is an ordered list of substrings a line must all contain.
// An empty Predicate matches every line.
type Predicate []string

// Match reports whether line contains every substring of p
func (p Predicate) Match(line string) bool {
	for _, pattern := range p {
		if !strings.Contains(line, pattern) {
			return false
		}
	}
	return true
}
