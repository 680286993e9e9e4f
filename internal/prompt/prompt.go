// Package prompt splits a generation-parameter string into its positive prompt tokens.
package prompt

import "strings"

// negativeMarker separates the positive prompt from everything that follows it.
const negativeMarker = " Negative prompt: "

// Tokens returns the comma separated positive prompt tokens of params in their
// original order. Whitespace is trimmed first, then leading '(' and trailing ')'
// runs, then leading '[' and trailing ']' runs. Empty tokens are kept.
func Tokens(params string) []string {
	positive, _, _ := strings.Cut(params, negativeMarker)

	parts := strings.Split(positive, ",")
	tokens := make([]string, len(parts))
	for i, part := range parts {
		tokens[i] = clean(part)
	}
	return tokens
}

// Tags returns the tokens of params usable as tag names, in order and without duplicates.
func Tags(params string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, token := range Tokens(params) {
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tags = append(tags, token)
	}
	return tags
}

func clean(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimLeft(token, "(")
	token = strings.TrimRight(token, ")")
	token = strings.TrimLeft(token, "[")
	return strings.TrimRight(token, "]")
}
