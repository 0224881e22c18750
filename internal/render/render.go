// Package render writes HTML back out as a Word (.docx) package.
package render

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render converts an HTML document or fragment into .docx bytes.
func Render(src string) ([]byte, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	body := findBody(doc)
	if body == nil {
		body = doc
	}
	w := &writer{out: &strings.Builder{}}
	w.rels = append(w.rels, relationship{id: "rId1", typ: relStyles, target: "styles.xml"})
	w.container(body, paraProps{}, runProps{})
	if w.out.Len() == 0 {
		w.out.WriteString("<w:p/>")
	}
	return pack(w.out.String(), w.rels, w.media)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

type writer struct {
	out    *strings.Builder
	rels   []relationship
	media  []mediaPart
	depth  int
	nextID int
}

// paraProps is the paragraph formatting of a block container.
type paraProps struct {
	style  string
	jc     string
	indent int
	prefix string
}

func (p paraProps) xml() string {
	var b strings.Builder
	if p.style != "" {
		b.WriteString(`<w:pStyle w:val="` + p.style + `"/>`)
	}
	if p.indent > 0 {
		fmt.Fprintf(&b, `<w:ind w:left="%d" w:hanging="360"/>`, p.indent)
	}
	if p.jc != "" {
		b.WriteString(`<w:jc w:val="` + p.jc + `"/>`)
	}
	if b.Len() == 0 {
		return ""
	}
	return "<w:pPr>" + b.String() + "</w:pPr>"
}

// para accumulates the runs of the paragraph being built.
type para struct {
	runs []string
	// space is true at paragraph start and after emitted whitespace.
	space bool
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Ul: true, atom.Ol: true,
	atom.Li: true, atom.Table: true, atom.Blockquote: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Main: true,
	atom.Nav: true, atom.Aside: true, atom.Figure: true, atom.Figcaption: true,
	atom.Address: true, atom.Pre: true, atom.Center: true, atom.Form: true,
	atom.Fieldset: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Hr: true,
	atom.Caption: true, atom.Thead: true, atom.Tbody: true, atom.Tfoot: true, atom.Tr: true,
}

var skipTags = map[atom.Atom]bool{
	atom.Head: true, atom.Style: true, atom.Script: true, atom.Template: true,
	atom.Noscript: true, atom.Title: true, atom.Meta: true, atom.Link: true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && (blockTags[n.DataAtom] || skipTags[n.DataAtom])
}

// container renders the children of a block element, grouping inline
// content into paragraphs between nested blocks.
func (w *writer) container(n *html.Node, pp paraProps, rp runProps) {
	cur := &para{space: true}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			if w.flush(cur, pp) {
				pp.prefix = ""
			}
			w.block(c, rp)
			continue
		}
		w.inline(c, cur, rp)
	}
	w.flush(cur, pp)
}

// flush writes the pending paragraph, reporting whether one was written.
func (w *writer) flush(cur *para, pp paraProps) bool {
	if len(cur.runs) == 0 {
		return false
	}
	w.out.WriteString("<w:p>" + pp.xml())
	if pp.prefix != "" {
		w.out.WriteString(textRun(pp.prefix, runProps{}))
	}
	for _, r := range cur.runs {
		w.out.WriteString(r)
	}
	w.out.WriteString("</w:p>")
	cur.runs = cur.runs[:0]
	cur.space = true
	return true
}

const (
	pageBreakPara = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
	rulePara      = `<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`
)

func (w *writer) block(n *html.Node, rp runProps) {
	if skipTags[n.DataAtom] {
		return
	}
	rp = rp.with(n)
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		w.container(n, paraProps{style: "Heading" + strconv.Itoa(level), jc: alignment(n)}, rp)
	case atom.Div:
		if hasClass(n, "page-break") {
			w.out.WriteString(pageBreakPara)
			return
		}
		w.container(n, paraProps{jc: alignment(n)}, rp)
	case atom.Ul, atom.Ol:
		w.list(n, rp)
	case atom.Li:
		w.container(n, paraProps{style: "ListParagraph", indent: 360 + 360*w.depth, prefix: "• "}, rp)
	case atom.Table:
		w.table(n, rp)
	case atom.Hr:
		w.out.WriteString(rulePara)
	case atom.Blockquote, atom.Dd:
		w.container(n, paraProps{jc: alignment(n), indent: 720}, rp)
	case atom.Thead, atom.Tbody, atom.Tfoot, atom.Tr:
		// Table sections outside a table render their text as paragraphs.
		w.container(n, paraProps{}, rp)
	default:
		w.container(n, paraProps{jc: alignment(n)}, rp)
	}
}

func (w *writer) list(n *html.Node, rp runProps) {
	w.depth++
	defer func() { w.depth-- }()
	ordered := n.DataAtom == atom.Ol
	num := 1
	if s, err := strconv.Atoi(attr(n, "start")); err == nil && ordered {
		num = s
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			if isBlock(c) {
				w.block(c, rp)
			}
			continue
		}
		prefix := "• "
		if ordered {
			prefix = strconv.Itoa(num) + ". "
			num++
		}
		w.container(c, paraProps{style: "ListParagraph", indent: 360 * (w.depth + 1), prefix: prefix}, rp.with(c))
	}
}

var spaceRe = regexp.MustCompile(`[ \t\r\n\f]+`)

func (w *writer) inline(n *html.Node, cur *para, rp runProps) {
	switch n.Type {
	case html.TextNode:
		s := spaceRe.ReplaceAllString(n.Data, " ")
		if cur.space {
			s = strings.TrimLeft(s, " ")
		}
		if s == "" {
			return
		}
		cur.space = strings.HasSuffix(s, " ")
		cur.runs = append(cur.runs, textRun(s, rp))
	case html.ElementNode:
		if skipTags[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Br:
			cur.runs = append(cur.runs, `<w:r><w:br/></w:r>`)
			cur.space = true
			return
		case atom.Img:
			if r := w.image(n); r != "" {
				cur.runs = append(cur.runs, r)
				cur.space = false
			}
			return
		}
		rp = rp.with(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.inline(c, cur, rp)
		}
	}
}

func textRun(s string, rp runProps) string {
	return "<w:r>" + rp.xml() + `<w:t xml:space="preserve">` + escape(s) + "</w:t></w:r>"
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
