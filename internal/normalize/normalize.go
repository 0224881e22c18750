// Package normalize cleans converter output into predictable, editor-ready
// HTML.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedStyles are the inline style properties kept on any element.
var AllowedStyles = []string{"font-size", "color", "font-weight", "text-align", "background-color"}

// FontStyleBlock maps generic tags onto a consistent CJK-friendly font stack.
const FontStyleBlock = `<style data-docshape="fonts">
h1, h2, h3, h4, h5, h6 { font-family: "SimHei", "黑体", "Microsoft YaHei", sans-serif; font-weight: bold; }
body, p, td, th, li { font-family: "SimSun", "宋体", "Times New Roman", serif; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #000; padding: 4px 6px; }
.page-break { page-break-after: always; }
</style>`

// Options controls normalization.
type Options struct {
	// FontStyles injects FontStyleBlock ahead of the content.
	FontStyles bool
	Logger     *slog.Logger
}

// DefaultOptions returns the import defaults.
func DefaultOptions() Options {
	return Options{FontStyles: true}
}

type step struct {
	name string
	fn   func(string) (string, error)
}

// Normalizer applies the cleaning steps in order.
type Normalizer struct {
	steps []step
	log   *slog.Logger
}

// New builds a Normalizer.
func New(opt Options) *Normalizer {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	n := &Normalizer{log: log}
	n.steps = []step{
		{"vendor-tags", stripVendorTags},
		{"conditional-comments", stripConditionalComments},
		{"styles", filterStyles},
		{"sanitize", sanitize},
	}
	if opt.FontStyles {
		n.steps = append(n.steps, step{"font-styles", injectFontStyles})
	}
	return n
}

// Normalize runs every step over raw. When a step fails the output of the
// previous step is returned and the remaining steps are skipped.
func (n *Normalizer) Normalize(raw string) string {
	out := raw
	for _, s := range n.steps {
		next, err := run(s, out)
		if err != nil {
			n.log.Warn("normalize step failed, keeping partial result", "step", s.name, "err", err)
			return out
		}
		out = next
	}
	return out
}

// Normalize cleans raw with the default options.
func Normalize(raw string) string {
	return New(DefaultOptions()).Normalize(raw)
}

func run(s step, in string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", s.name, r)
		}
	}()
	return s.fn(in)
}

var (
	officeEmptyRe = regexp.MustCompile(`(?is)<o:p>.*?</o:p>`)
	officeTagRe   = regexp.MustCompile(`(?i)</?[ovw]:[a-z]+[^>]*>`)
	condCommentRe = regexp.MustCompile(`(?is)<!--\[if[^\]]*\]>.*?<!\[endif\]-->`)
	condBlockRe   = regexp.MustCompile(`(?is)<!\[if[^\]]*\]>.*?<!\[endif\]>`)
	styleAttrRe   = regexp.MustCompile(`(?i)\sstyle\s*=\s*("[^"]*"|'[^']*')`)
)

func stripVendorTags(s string) (string, error) {
	s = officeEmptyRe.ReplaceAllString(s, "")
	return officeTagRe.ReplaceAllString(s, ""), nil
}

func stripConditionalComments(s string) (string, error) {
	s = condCommentRe.ReplaceAllString(s, "")
	return condBlockRe.ReplaceAllString(s, ""), nil
}

// filterStyles keeps only allow-listed declarations in style attributes and
// drops attributes that end up empty.
func filterStyles(s string) (string, error) {
	allowed := make(map[string]bool, len(AllowedStyles))
	for _, p := range AllowedStyles {
		allowed[p] = true
	}
	return styleAttrRe.ReplaceAllStringFunc(s, func(attr string) string {
		m := styleAttrRe.FindStringSubmatch(attr)
		quote := m[1][:1]
		body := m[1][1 : len(m[1])-1]
		var kept []string
		for _, decl := range strings.Split(body, ";") {
			prop, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			prop = strings.ToLower(strings.TrimSpace(prop))
			val = strings.TrimSpace(val)
			if strings.HasPrefix(prop, "mso-") || !allowed[prop] || val == "" {
				continue
			}
			kept = append(kept, prop+": "+val)
		}
		if len(kept) == 0 {
			return ""
		}
		return " style=" + quote + strings.Join(kept, "; ") + quote
	}), nil
}

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "span", "br", "hr",
		"strong", "b", "em", "i", "u", "s", "del", "sub", "sup", "blockquote", "pre", "code", "a")
	p.AllowLists()
	p.AllowTables()
	p.AllowImages()
	p.AllowDataURIImages()
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowStyles(AllowedStyles...).Globally()
	return p
}

func sanitize(s string) (string, error) {
	return policy.Sanitize(s), nil
}

func injectFontStyles(s string) (string, error) {
	return FontStyleBlock + "\n" + strings.TrimLeft(s, "\r\n"), nil
}
