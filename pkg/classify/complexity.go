package classify

import (
	"strings"

	"github.com/sagehive/sagehive/pkg/domain"
)

// Pattern sets for complexity scoring, ordered from most to least specific.
// VERY_COMPLEX is checked before COMPLEX so that a broad cue like "analysis"
// never masks "comprehensive analysis".
var (
	veryComplexPatterns = []string{
		"comprehensive analysis",
		"detailed comparison",
		"in-depth",
		"thorough analysis",
		"comprehensive review",
		"exhaustive",
		"end-to-end analysis",
	}

	complexPatterns = []string{
		"compare",
		"comparison",
		" vs ",
		" vs. ",
		"versus",
		"analyze",
		"analyse",
		"evaluate",
		"trade-off",
		"tradeoff",
		"contrast",
		"pros and cons",
	}

	simplePatterns = []string{
		"what is",
		"what are",
		"what's",
		"define",
		"definition of",
		"who is",
		"when was",
		"meaning of",
	}

	moderatePatterns = []string{
		"how does",
		"how do",
		"how to",
		"why",
		"explain",
		"describe",
	}
)

// Classify maps a raw query to a complexity tier. Pure function; never
// fails. Unmatched queries default to MODERATE.
func Classify(query string) domain.ComplexityTier {
	q := strings.ToLower(query)

	if matchesAny(q, veryComplexPatterns) {
		return domain.ComplexityVeryComplex
	}
	if matchesAny(q, complexPatterns) {
		return domain.ComplexityComplex
	}
	if matchesAny(q, simplePatterns) {
		return domain.ComplexitySimple
	}
	if matchesAny(q, moderatePatterns) {
		return domain.ComplexityModerate
	}

	return domain.ComplexityModerate
}

func matchesAny(query string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(query, p) {
			return true
		}
	}
	return false
}
