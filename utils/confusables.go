package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DigitConfusables maps characters that OCR engines produce in place of a
// digit to the digit they most likely stand for. Only applied to tokens that
// sit in a numeric position of an identifier.
var DigitConfusables = map[rune]rune{
	'O': '0', 'o': '0', 'Q': '0', 'D': '0',
	'I': '1', 'l': '1', '|': '1', 'i': '1', '!': '1',
	'Z': '2', 'z': '2',
	'S': '5', 's': '5',
	'G': '6', 'b': '6',
	'T': '7',
	'B': '8',
	'g': '9', 'q': '9',
}

// LetterConfusables maps characters read in place of the series letter.
var LetterConfusables = map[rune]rune{
	'4': 'A',
	'a': 'A',
}

// digitLike is the regexp character class matching a digit or any of its confusables.
var digitLike = buildDigitClass()

func buildDigitClass() string {
	var b strings.Builder
	b.WriteString("[0-9")
	for r := range DigitConfusables {
		switch r {
		case '|', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString("]")
	return b.String()
}

// CanonicalDigits rewrites confusable characters to digits and drops anything
// that is still not a digit afterwards (spaces, dots, dashes).
func CanonicalDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := DigitConfusables[r]; ok {
			r = c
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalLetter upper-cases a series letter and undoes letter confusions.
func CanonicalLetter(r rune) rune {
	if c, ok := LetterConfusables[r]; ok {
		return c
	}
	return unicode.ToUpper(r)
}

func hasASCIIDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// FoldDiacritics strips combining marks, so "Albarán" becomes "Albaran".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
