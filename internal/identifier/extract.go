package identifier

import (
	"regexp"
	"strings"
)

// Patterns are applied in order of increasing breadth. The last one matches
// any 32-44 character alphanumeric run and can produce false positives;
// Classify is used to flag those.
var patterns = []*regexp.Regexp{
	// pill or chart emoji at the start of a line
	regexp.MustCompile(`(?:^|\n)(?:💊|💹)\s*([A-Za-z0-9]{32,44})\b`),
	// pill or chart emoji anywhere
	regexp.MustCompile(`(?:💊|💹)\s*([A-Za-z0-9]{32,44})\b`),
	// any address-like run
	regexp.MustCompile(`\b([A-Za-z0-9]{32,44})\b`),
}

// Match is one extracted candidate and the index of the first pattern that
// produced it.
type Match struct {
	Candidate string
	Pattern   int
}

// Extract returns candidates found in text in first-seen order. A candidate
// matched by several patterns is returned once, attributed to the narrowest
// pattern.
func Extract(text string) []Match {
	var out []Match
	seen := make(map[string]struct{})

	for i, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if candidate == "" {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, Match{Candidate: candidate, Pattern: i})
		}
	}

	return out
}

// Candidates is Extract without pattern attribution.
func Candidates(text string) []string {
	matches := Extract(text)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Candidate
	}
	return out
}

var patternNames = []string{"line_emoji", "emoji", "broad"}

// PatternName returns a short label for a Match.Pattern index.
func PatternName(i int) string {
	if i < 0 || i >= len(patternNames) {
		return "unknown"
	}
	return patternNames[i]
}
