package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/docshape-cli/internal/markup"
)

// htmlConverter re-imports previously exported or hand-edited HTML.
type htmlConverter struct{}

func (htmlConverter) CanConvert(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}

func (htmlConverter) Convert(content []byte) (*Conversion, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8 text", ErrUnsupported)
	}
	src := string(content)
	if body := markup.Find(src, "body", nil); len(body) > 0 {
		src = body[0].Inner(src)
	}
	return &Conversion{HTML: strings.TrimSpace(src)}, nil
}
