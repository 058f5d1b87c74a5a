package contract

import (
	"strings"
	"unicode"
)

// Classify matches a prompt against the catalog and returns the first
// contract whose keyword group is fully present, scanning in priority order.
// Prompts that match nothing get the pass-through contract.
//
// Matching is word-based, not substring-based: short keywords like "tp" must
// appear as standalone words so that ordinary prose does not trigger the
// correctness contract.
func Classify(prompt string) *Contract {
	words := tokenize(prompt)
	for _, c := range Catalog {
		if matches(c, words) {
			return c
		}
	}
	return passThrough
}

func matches(c *Contract, words map[string]struct{}) bool {
	for _, group := range c.Keywords {
		if containsAll(words, group) {
			return true
		}
	}
	return false
}

func containsAll(words map[string]struct{}, group []string) bool {
	if len(group) == 0 {
		return false
	}
	for _, w := range group {
		if _, ok := words[w]; !ok {
			return false
		}
	}
	return true
}

// tokenize lowercases the prompt and splits on non-alphanumeric runes,
// producing a word set. Plural forms are folded onto their singular so that
// "statements" satisfies the keyword "statement".
func tokenize(prompt string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
		if trimmed := strings.TrimSuffix(f, "s"); trimmed != f && trimmed != "" {
			words[trimmed] = struct{}{}
		}
	}
	return words
}
