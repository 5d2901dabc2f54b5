package agent

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/memory"
)

var urgencyPattern = regexp.MustCompile(`(?i)\b(urgent|emergency|asap|critical|important|immediately)\b`)

// detectCapabilities returns the capabilities with at least one name token
// present in the lowercased input. Used for metadata only.
func detectCapabilities(capabilities []string, input string) []string {
	lower := strings.ToLower(input)
	return lo.Filter(capabilities, func(capability string, _ int) bool {
		tokens := strings.FieldsFunc(strings.ToLower(capability), func(r rune) bool {
			return r == ' ' || r == '_' || r == '-' || r == '/'
		})
		return lo.SomeBy(tokens, func(token string) bool {
			return token != "" && strings.Contains(lower, token)
		})
	})
}

// scoreImportance rates how worth remembering an exchange is.
func scoreImportance(input, response string) float64 {
	score := 1.0
	if llm.TextLength(input) > 100 {
		score++
	}
	if llm.TextLength(response) > 200 {
		score++
	}
	if urgencyPattern.MatchString(input) {
		score += 2
	}
	return min(score, memory.MaxImportance)
}
