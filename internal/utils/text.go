package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	nonContentRe = regexp.MustCompile(`(?is)<(style|script)\b[^>]*>.*?</(?:style|script)\s*>`)
	openBlockRe  = regexp.MustCompile(`(?is)<(?:style|script)\b.*$`)
	closeBlockRe = regexp.MustCompile(`(?is)^.*?</(?:style|script)\s*>`)
)

// StripNonContent removes style and script elements together with their
// bodies. A fragment cut from a larger document may start or end inside such
// an element; the partial block is dropped as well.
func StripNonContent(fragment string) string {
	s := nonContentRe.ReplaceAllString(fragment, "")
	s = closeBlockRe.ReplaceAllString(s, "")
	return openBlockRe.ReplaceAllString(s, "")
}

// CleanText strips markup from an HTML fragment, decodes entities and trims
// the result. Non-breaking spaces become plain spaces.
func CleanText(fragment string) string {
	if fragment == "" {
		return ""
	}
	s := tagRe.ReplaceAllString(StripNonContent(fragment), "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// RuneLen counts the runes in s.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }

// AlignStart moves a byte offset forward to the next rune boundary.
func AlignStart(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
