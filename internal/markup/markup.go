// Package markup locates balanced HTML elements inside a document string by
// byte offset, so callers can splice replacements without re-serializing the
// rest of the document.
package markup

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Element is a located element. Offsets index into the source string.
type Element struct {
	Tag        string
	Attrs      map[string]string
	Start      int // first byte of the start tag
	End        int // one past the end tag
	InnerStart int
	InnerEnd   int
}

// Outer returns the full element text.
func (e Element) Outer(src string) string { return src[e.Start:e.End] }

// Inner returns the element content between its tags.
func (e Element) Inner(src string) string { return src[e.InnerStart:e.InnerEnd] }

// Attr returns an attribute value, or "" when absent.
func (e Element) Attr(name string) string { return e.Attrs[name] }

// HasClass reports whether the class attribute contains the given class token.
func (e Element) HasClass(class string) bool {
	for _, c := range strings.Fields(e.Attrs["class"]) {
		if c == class {
			return true
		}
	}
	return false
}

// Matcher decides whether a start tag with the given attributes is wanted.
type Matcher func(attrs map[string]string) bool

// WithClass matches elements carrying the class token.
func WithClass(class string) Matcher {
	return func(attrs map[string]string) bool {
		return Element{Attrs: attrs}.HasClass(class)
	}
}

// Find returns the outermost elements named tag that satisfy match, in
// document order. Matches nested inside an earlier match are not reported.
// Elements without a closing tag are skipped.
func Find(src, tag string, match Matcher) []Element {
	tag = strings.ToLower(tag)
	z := html.NewTokenizer(strings.NewReader(src))
	var (
		out   []Element
		pos   int
		depth int
		cur   Element
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return out
			}
			break
		}
		start := pos
		pos += len(z.Raw())

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != tag {
				continue
			}
			if depth > 0 {
				depth++
				continue
			}
			attrs := readAttrs(z, hasAttr)
			if match != nil && !match(attrs) {
				continue
			}
			cur = Element{Tag: tag, Attrs: attrs, Start: start, InnerStart: pos}
			depth = 1
		case html.EndTagToken:
			if depth == 0 {
				continue
			}
			name, _ := z.TagName()
			if string(name) != tag {
				continue
			}
			depth--
			if depth == 0 {
				cur.InnerEnd = start
				cur.End = pos
				out = append(out, cur)
			}
		}
	}
	return out
}

func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := map[string]string{}
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		attrs[string(k)] = string(v)
	}
	return attrs
}

// Splice rebuilds src with every element replaced by repl(i, el). Elements
// must be non-overlapping and in document order, as returned by Find.
func Splice(src string, els []Element, repl func(i int, el Element) string) string {
	if len(els) == 0 {
		return src
	}
	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for i, el := range els {
		b.WriteString(src[last:el.Start])
		b.WriteString(repl(i, el))
		last = el.End
	}
	b.WriteString(src[last:])
	return b.String()
}
