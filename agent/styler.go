package agent

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ResponseStyler rewrites a successful response before it is returned.
type ResponseStyler interface {
	Style(text string) string
}

// NoopStyler returns text unchanged.
type NoopStyler struct{}

func (NoopStyler) Style(text string) string { return text }

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// VocabularyStyler swaps whole words for persona vocabulary, keeping the
// capitalization of the word it replaces.
type VocabularyStyler struct {
	subs []substitution
}

// NewVocabularyStyler builds a styler from a word → replacement map.
// Matching is case-insensitive.
func NewVocabularyStyler(vocabulary map[string]string) *VocabularyStyler {
	words := make([]string, 0, len(vocabulary))
	for w := range vocabulary {
		if strings.TrimSpace(w) != "" {
			words = append(words, w)
		}
	}
	// Longer words first so multi-word entries win over their parts.
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})

	s := &VocabularyStyler{}
	for _, w := range words {
		s.subs = append(s.subs, substitution{
			pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			replacement: vocabulary[w],
		})
	}
	return s
}

func (s *VocabularyStyler) Style(text string) string {
	for _, sub := range s.subs {
		text = sub.pattern.ReplaceAllStringFunc(text, func(match string) string {
			return matchCase(match, sub.replacement)
		})
	}
	return text
}

func matchCase(original, replacement string) string {
	switch {
	case replacement == "":
		return replacement
	case strings.ToUpper(original) == original && strings.ToLower(original) != original:
		return strings.ToUpper(replacement)
	case startsUpper(original):
		r, size := utf8.DecodeRuneInString(replacement)
		return string(unicode.ToUpper(r)) + replacement[size:]
	default:
		return replacement
	}
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
