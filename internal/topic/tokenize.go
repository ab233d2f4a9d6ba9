// Package topic files learner turns under keyword-overlap clusters.
package topic

import (
	"strings"
	"unicode"
)

// FallbackToken is used when a text yields no usable tokens.
const FallbackToken = "general"

const minTokenLen = 3

// Tokenize splits text into distinct lowercase alphanumeric runs longer than
// two characters, in order of first appearance.
func Tokenize(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, run := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(run)) < minTokenLen {
			continue
		}
		if _, dup := seen[run]; dup {
			continue
		}
		seen[run] = struct{}{}
		tokens = append(tokens, run)
	}
	if len(tokens) == 0 {
		return []string{FallbackToken}
	}
	return tokens
}
