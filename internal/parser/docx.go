package parser

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
)

type docxConverter struct{}

func (docxConverter) CanConvert(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".docx")
}

func (docxConverter) Convert(content []byte) (*Conversion, error) {
	if err := CheckMagic(content); err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open package: %v", ErrCorrupt, err)
	}
	docXML, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	root, err := parseXML(docXML)
	if err != nil {
		return nil, fmt.Errorf("%w: document.xml: %v", ErrCorrupt, err)
	}
	body := root.find("body")
	if body == nil {
		return nil, fmt.Errorf("%w: document.xml has no body", ErrCorrupt)
	}
	relsXML, _ := readZipFile(zr, "word/_rels/document.xml.rels")
	stylesXML, _ := readZipFile(zr, "word/styles.xml")

	w := &docxWriter{
		zr:     zr,
		rels:   parseRelationships(relsXML),
		styles: parseStyles(stylesXML),
		warned: map[string]bool{},
	}
	w.blocks(body.children)
	w.closeList()
	return &Conversion{HTML: w.out.String(), Warnings: w.warnings}, nil
}

type docxWriter struct {
	zr       *zip.Reader
	rels     map[string]string
	styles   map[string]string
	out      strings.Builder
	inList   bool
	warnings []string
	warned   map[string]bool
}

func (w *docxWriter) warn(msg string) {
	if w.warned[msg] {
		return
	}
	w.warned[msg] = true
	w.warnings = append(w.warnings, msg)
}

func (w *docxWriter) blocks(nodes []*xnode) {
	for _, n := range nodes {
		switch n.name {
		case "p":
			w.paragraph(n)
		case "tbl":
			w.closeList()
			w.table(n)
		case "sdt":
			if c := n.child("sdtContent"); c != nil {
				w.blocks(c.children)
			}
		case "customXml", "ins", "smartTag":
			w.blocks(n.children)
		case "AlternateContent":
			if c := n.child("Choice"); c != nil {
				w.blocks(c.children)
			}
		}
	}
}

func (w *docxWriter) closeList() {
	if w.inList {
		w.out.WriteString("</ul>")
		w.inList = false
	}
}

var headingStyleRe = regexp.MustCompile(`(?i)^(?:heading|标题)\s*([1-9])$`)

// headingLevel maps a paragraph style to h1..h6, or 0 for body text.
func (w *docxWriter) headingLevel(ppr *xnode) int {
	id, ok := ppr.val("pStyle")
	if ok {
		name := w.styles[id]
		if name == "" {
			name = id
		}
		lower := strings.ToLower(strings.TrimSpace(name))
		switch lower {
		case "title":
			return 1
		case "subtitle":
			return 2
		}
		if m := headingStyleRe.FindStringSubmatch(lower); m != nil {
			return clampLevel(m[1])
		}
	}
	if lvl, ok := ppr.val("outlineLvl"); ok {
		n, err := strconv.Atoi(lvl)
		if err == nil && n < 9 {
			return clampLevel(strconv.Itoa(n + 1))
		}
	}
	return 0
}

func clampLevel(s string) int {
	n, _ := strconv.Atoi(s)
	switch {
	case n < 1:
		return 1
	case n > 6:
		return 6
	}
	return n
}

var alignments = map[string]string{"center": "center", "right": "right", "end": "right", "both": "justify", "distribute": "justify"}

func (w *docxWriter) paragraph(p *xnode) {
	ppr := p.child("pPr")
	level := w.headingLevel(ppr)
	_, isList := ppr.val("numPr")
	if ppr != nil && ppr.on("pageBreakBefore") {
		w.closeList()
		w.out.WriteString(pageBreak)
	}

	segs := &segments{}
	w.inline(p.children, segs)
	parts := segs.done()

	tag, attrs := "p", ""
	switch {
	case level > 0:
		tag = "h" + strconv.Itoa(level)
	case isList:
		tag = "li"
	}
	if jc, ok := ppr.val("jc"); ok && alignments[jc] != "" {
		attrs = ` style="text-align: ` + alignments[jc] + `"`
	}

	for i, part := range parts {
		if i > 0 {
			w.closeList()
			w.out.WriteString(pageBreak)
		}
		if strings.TrimSpace(part) == "" {
			continue
		}
		if tag == "li" {
			if !w.inList {
				w.out.WriteString("<ul>")
				w.inList = true
			}
		} else {
			w.closeList()
		}
		w.out.WriteString("<" + tag + attrs + ">" + part + "</" + tag + ">")
	}
}

const pageBreak = `<div class="page-break"></div>`

// segments collects paragraph content split at page breaks.
type segments struct {
	parts []string
	cur   strings.Builder
}

func (s *segments) write(v string) { s.cur.WriteString(v) }

func (s *segments) pageBreak() {
	s.parts = append(s.parts, s.cur.String())
	s.cur.Reset()
}

func (s *segments) done() []string { return append(s.parts, s.cur.String()) }

// inline renders run-level content of a paragraph.
func (w *docxWriter) inline(nodes []*xnode, segs *segments) {
	for _, n := range nodes {
		switch n.name {
		case "r":
			w.run(n, segs)
		case "hyperlink":
			href := ""
			if id := n.attr("id"); id != "" {
				href = w.rels[id]
			}
			if href == "" {
				w.inline(n.children, segs)
				continue
			}
			inner := &segments{}
			w.inline(n.children, inner)
			segs.write(`<a href="` + html.EscapeString(href) + `">` + strings.Join(inner.done(), "") + `</a>`)
		case "ins", "smartTag", "fldSimple", "customXml", "sdtContent":
			w.inline(n.children, segs)
		case "sdt":
			if c := n.child("sdtContent"); c != nil {
				w.inline(c.children, segs)
			}
		case "AlternateContent":
			if c := n.child("Choice"); c != nil {
				w.inline(c.children, segs)
			}
		case "object":
			w.warn("embedded object skipped")
		}
	}
}

func (w *docxWriter) run(r *xnode, segs *segments) {
	rpr := r.child("rPr")
	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		segs.write(wrapRun(rpr, html.EscapeString(text.String())))
		text.Reset()
	}
	for _, c := range r.children {
		switch c.name {
		case "t":
			text.WriteString(c.text.String())
		case "tab", "ptab":
			text.WriteString(" ")
		case "noBreakHyphen":
			text.WriteString("-")
		case "br", "cr":
			flush()
			if c.attr("type") == "page" {
				segs.pageBreak()
			} else {
				segs.write("<br>")
			}
		case "drawing":
			flush()
			segs.write(w.drawing(c))
		case "AlternateContent":
			flush()
			if choice := c.child("Choice"); choice != nil {
				if d := choice.child("drawing"); d != nil {
					segs.write(w.drawing(d))
				}
			}
		case "pict":
			w.warn("legacy VML picture skipped")
		case "object":
			w.warn("embedded object skipped")
		}
	}
	flush()
}

// wrapRun applies run formatting to already-escaped text.
func wrapRun(rpr *xnode, s string) string {
	if rpr == nil {
		return s
	}
	if va, ok := rpr.val("vertAlign"); ok {
		switch va {
		case "superscript":
			s = "<sup>" + s + "</sup>"
		case "subscript":
			s = "<sub>" + s + "</sub>"
		}
	}
	if rpr.on("strike") || rpr.on("dstrike") {
		s = "<del>" + s + "</del>"
	}
	if rpr.on("u") {
		s = "<u>" + s + "</u>"
	}
	if rpr.on("i") {
		s = "<em>" + s + "</em>"
	}
	if rpr.on("b") {
		s = "<strong>" + s + "</strong>"
	}
	var styles []string
	if c, ok := rpr.val("color"); ok && c != "" && c != "auto" && c != "000000" {
		styles = append(styles, "color: #"+c)
	}
	if sz, ok := rpr.val("sz"); ok {
		if half, err := strconv.Atoi(sz); err == nil && half > 0 {
			styles = append(styles, "font-size: "+strconv.FormatFloat(float64(half)/2, 'f', -1, 64)+"pt")
		}
	}
	if len(styles) > 0 {
		s = `<span style="` + strings.Join(styles, "; ") + `">` + s + `</span>`
	}
	return s
}

func (w *docxWriter) drawing(d *xnode) string {
	if d.find("txbxContent") != nil {
		w.warn("text box content skipped")
		return ""
	}
	blip := d.find("blip")
	if blip == nil {
		w.warn("drawing without picture skipped")
		return ""
	}
	target := w.rels[blip.attr("embed")]
	if target == "" {
		w.warn("image with unresolved relationship skipped")
		return ""
	}
	name := partPath(target)
	data, err := readZipFile(w.zr, name)
	if err != nil {
		w.warn("image " + name + " missing from package")
		return ""
	}
	mime := mimeByExt[strings.ToLower(path.Ext(name))]
	if mime == "" {
		w.warn("unsupported image type " + path.Ext(name) + " skipped")
		return ""
	}
	alt := ""
	if pr := d.find("docPr"); pr != nil {
		alt = pr.attr("descr")
	}
	return `<img src="data:` + mime + `;base64,` + base64.StdEncoding.EncodeToString(data) + `" alt="` + html.EscapeString(alt) + `">`
}

type gridCell struct {
	node    *xnode
	col     int
	span    int
	vmerge  string
	rowspan int
}

func (w *docxWriter) table(t *xnode) {
	var rows [][]*gridCell
	var headerRow []bool
	for _, tr := range tableRowNodes(t) {
		var cells []*gridCell
		col := 0
		for _, tc := range tableCellNodes(tr) {
			tcpr := tc.child("tcPr")
			span := 1
			if v, ok := tcpr.val("gridSpan"); ok {
				if n, err := strconv.Atoi(v); err == nil {
					span = analysis.ClampSpan(n, analysis.MaxColSpan)
				}
			}
			vm := ""
			if v, ok := tcpr.val("vMerge"); ok {
				vm = "continue"
				if v == "restart" {
					vm = "restart"
				}
			}
			cells = append(cells, &gridCell{node: tc, col: col, span: span, vmerge: vm, rowspan: 1})
			col += span
		}
		rows = append(rows, cells)
		trpr := tr.child("trPr")
		headerRow = append(headerRow, trpr != nil && trpr.on("tblHeader"))
	}

	for ri, cells := range rows {
		for _, c := range cells {
			if c.vmerge != "restart" {
				continue
			}
			for below := ri + 1; below < len(rows); below++ {
				next := cellAt(rows[below], c.col)
				if next == nil || next.vmerge != "continue" {
					break
				}
				if c.rowspan == analysis.MaxRowSpan {
					break
				}
				c.rowspan++
			}
		}
	}

	w.out.WriteString("<table>")
	for ri, cells := range rows {
		w.out.WriteString("<tr>")
		tag := "td"
		if headerRow[ri] {
			tag = "th"
		}
		for _, c := range cells {
			if c.vmerge == "continue" {
				continue
			}
			attrs := ""
			if c.span > 1 {
				attrs += ` colspan="` + strconv.Itoa(c.span) + `"`
			}
			if c.rowspan > 1 {
				attrs += ` rowspan="` + strconv.Itoa(c.rowspan) + `"`
			}
			w.out.WriteString("<" + tag + attrs + ">")
			inner := &docxWriter{zr: w.zr, rels: w.rels, styles: w.styles, warned: w.warned}
			inner.blocks(c.node.children)
			inner.closeList()
			w.warnings = append(w.warnings, inner.warnings...)
			w.out.WriteString(inner.out.String())
			w.out.WriteString("</" + tag + ">")
		}
		w.out.WriteString("</tr>")
	}
	w.out.WriteString("</table>")
}

func cellAt(cells []*gridCell, col int) *gridCell {
	for _, c := range cells {
		if c.col == col {
			return c
		}
	}
	return nil
}

func tableRowNodes(t *xnode) []*xnode {
	var out []*xnode
	for _, c := range t.children {
		switch c.name {
		case "tr":
			out = append(out, c)
		case "sdt":
			if sc := c.child("sdtContent"); sc != nil {
				out = append(out, sc.childrenNamed("tr")...)
			}
		}
	}
	return out
}

func tableCellNodes(tr *xnode) []*xnode {
	var out []*xnode
	for _, c := range tr.children {
		switch c.name {
		case "tc":
			out = append(out, c)
		case "sdt":
			if sc := c.child("sdtContent"); sc != nil {
				out = append(out, sc.childrenNamed("tc")...)
			}
		}
	}
	return out
}
