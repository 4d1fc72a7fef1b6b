package grading

import (
	"encoding/json"
	"strings"
	"unicode"

	"gorm.io/datatypes"
)

// normalize lowercases, strips punctuation, and collapses whitespace so that
// trivially different renderings of the same answer compare equal.
func normalize(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))

	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

// Normalize exposes the engine's canonical text normalization so callers can
// derive stable cache fingerprints from raw answers.
func Normalize(value string) string {
	return normalize(value)
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

// tokenSet splits a normalized string into an unordered set of tokens.
func tokenSet(value string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(normalize(value)) {
		set[token] = struct{}{}
	}
	return set
}

// applySynonyms rewrites tokens to their canonical form using the question's
// synonym map, so "car" and "automobile" land on the same token.
func applySynonyms(set map[string]struct{}, synonyms map[string][]string) map[string]struct{} {
	if len(synonyms) == 0 {
		return set
	}

	canonicalOf := make(map[string]string)
	for canonical, aliases := range synonyms {
		canonical = normalize(canonical)
		for _, alias := range aliases {
			canonicalOf[normalize(alias)] = canonical
		}
	}

	rewritten := make(map[string]struct{}, len(set))
	for token := range set {
		if canonical, ok := canonicalOf[token]; ok {
			token = canonical
		}
		rewritten[token] = struct{}{}
	}
	return rewritten
}

// decodeStringSlice parses a JSON column holding a list of strings. Malformed
// or empty columns decode to nil rather than failing the grading pass.
func decodeStringSlice(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func decodeSynonymMap(raw datatypes.JSON) map[string][]string {
	if len(raw) == 0 {
		return nil
	}

	var values map[string][]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for token := range a {
		if _, ok := b[token]; !ok {
			return false
		}
	}
	return true
}

func intersectionSize(a, b map[string]struct{}) int {
	count := 0
	for token := range a {
		if _, ok := b[token]; ok {
			count++
		}
	}
	return count
}
