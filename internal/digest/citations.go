package digest

import (
	"regexp"
	"strings"
)

var (
	bulletRegex   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+\S`)
	citationRegex = regexp.MustCompile(`\(<https?://[^|>\s]+\|link>\)`)
)

// MissingCitations returns the bullet lines of a digest that carry no inline
// (<url|link>) citation. Lines outside bullet lists are not inspected.
func MissingCitations(digest string) []string {
	var missing []string
	for _, line := range strings.Split(digest, "\n") {
		if !bulletRegex.MatchString(line) {
			continue
		}
		if !citationRegex.MatchString(line) {
			missing = append(missing, strings.TrimSpace(line))
		}
	}
	return missing
}
