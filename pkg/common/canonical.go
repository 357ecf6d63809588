package common

import (
	"strings"
	"unicode"
)

// functionWords stay lower-case inside a canonical name but never at the
// first or last position.
var functionWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"and": true, "but": true, "or": true, "nor": true,
	"for": true, "so": true, "yet": true,
	"as": true, "at": true, "by": true, "in": true, "of": true,
	"off": true, "on": true, "per": true, "to": true, "up": true,
	"via": true, "with": true,
}

// CanonicalName produces the identity form of a node name: whitespace
// collapsed, every word title-cased except function words away from the
// edges. The transform is idempotent and case/whitespace-insensitive:
// equal-up-to-case inputs canonicalize to the same value.
func CanonicalName(raw string) string {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return ""
	}
	for i, word := range words {
		lower := strings.ToLower(word)
		if i > 0 && i < len(words)-1 && functionWords[lower] {
			words[i] = lower
			continue
		}
		words[i] = titleWord(lower)
	}
	return strings.Join(words, " ")
}

func titleWord(lower string) string {
	runes := []rune(lower)
	upperNext := true
	for i, r := range runes {
		if upperNext && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			upperNext = false
			continue
		}
		// Hyphenated and slashed compounds title-case each part.
		if r == '-' || r == '/' {
			upperNext = true
		}
	}
	return string(runes)
}
