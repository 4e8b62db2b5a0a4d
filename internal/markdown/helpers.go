package markdown

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `\._[](){}#|!+-=*~>` + "`"

// Inside the (...) part of an inline link only these need escaping.
const mdV2LinkURLSpecialChars = `)\`

//nolint:gochecknoglobals // Compiled once, never mutated.
var urlPattern = xurls.Strict()

func EscapeV2(input string) string {
	return escape(input, mdV2SpecialCharLookup(mdV2SpecialChars))
}

// EscapeV2WithLinks escapes input for MarkdownV2 and turns every URL in it
// into an inline link so it stays clickable.
func EscapeV2WithLinks(input string) string {
	locs := urlPattern.FindAllStringIndex(input, -1)
	if len(locs) == 0 {
		return EscapeV2(input)
	}

	linkLookup := mdV2SpecialCharLookup(mdV2LinkURLSpecialChars)

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		url := input[start:end]

		b.WriteString(EscapeV2(input[prev:start]))
		b.WriteString("[")
		b.WriteString(EscapeV2(url))
		b.WriteString("](")
		b.WriteString(escape(url, linkLookup))
		b.WriteString(")")

		prev = end
	}
	b.WriteString(EscapeV2(input[prev:]))

	return b.String()
}

func escape(input string, lookup [256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func mdV2SpecialCharLookup(chars string) [256]bool {
	var m [256]bool
	for _, c := range []byte(chars) {
		m[c] = true
	}
	return m
}
