package render

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
)

// slot is one grid position that starts a w:tc.
type slot struct {
	cell  *html.Node // nil for a vertical-merge continuation
	span  int
	merge string // "", "restart" or "continue"
}

type grid struct {
	rows  [][]*html.Node
	slots []map[int]*slot
	cols  int
}

// layout places cells on an occupancy grid so colspan and rowspan land on
// the columns a browser would give them.
func layout(t *html.Node) *grid {
	g := &grid{}
	for _, tr := range rowsOf(t) {
		g.rows = append(g.rows, cellsOf(tr))
	}
	g.slots = make([]map[int]*slot, len(g.rows))
	for i := range g.slots {
		g.slots[i] = map[int]*slot{}
	}
	occupied := map[[2]int]bool{}
	for r, cells := range g.rows {
		c := 0
		for _, td := range cells {
			for occupied[[2]int{r, c}] {
				c++
			}
			cs := spanAttr(td, "colspan")
			rs := spanAttr(td, "rowspan")
			if r+rs > len(g.rows) {
				rs = len(g.rows) - r
			}
			s := &slot{cell: td, span: cs}
			if rs > 1 {
				s.merge = "restart"
			}
			g.slots[r][c] = s
			for dr := 0; dr < rs; dr++ {
				for dc := 0; dc < cs; dc++ {
					occupied[[2]int{r + dr, c + dc}] = true
				}
				if dr > 0 {
					g.slots[r+dr][c] = &slot{span: cs, merge: "continue"}
				}
			}
			c += cs
			if c > g.cols {
				g.cols = c
			}
		}
	}
	return g
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil {
		return 1
	}
	if key == "rowspan" {
		return analysis.ClampSpan(v, analysis.MaxRowSpan)
	}
	return analysis.ClampSpan(v, analysis.MaxColSpan)
}

func rowsOf(t *html.Node) []*html.Node {
	var out []*html.Node
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			out = append(out, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.Type == html.ElementNode && r.DataAtom == atom.Tr {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

func cellsOf(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

func headerRow(cells []*html.Node) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c.DataAtom != atom.Th {
			return false
		}
	}
	return true
}

func (w *writer) table(t *html.Node, rp runProps) {
	g := layout(t)
	if g.cols == 0 {
		return
	}
	colW := textWidth / g.cols
	w.out.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="5000" w:type="pct"/>` +
		`<w:tblLook w:val="04A0" w:firstRow="1" w:lastRow="0" w:firstColumn="1" w:lastColumn="0" w:noHBand="0" w:noVBand="1"/></w:tblPr><w:tblGrid>`)
	for i := 0; i < g.cols; i++ {
		fmt.Fprintf(w.out, `<w:gridCol w:w="%d"/>`, colW)
	}
	w.out.WriteString(`</w:tblGrid>`)
	for r, cells := range g.rows {
		w.out.WriteString("<w:tr>")
		if headerRow(cells) {
			w.out.WriteString(`<w:trPr><w:tblHeader/></w:trPr>`)
		}
		for col := 0; col < g.cols; {
			s := g.slots[r][col]
			if s == nil {
				fmt.Fprintf(w.out, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr><w:p/></w:tc>`, colW)
				col++
				continue
			}
			w.cell(s, colW, rp)
			col += s.span
		}
		w.out.WriteString("</w:tr>")
	}
	w.out.WriteString("</w:tbl>")
}

func (w *writer) cell(s *slot, colW int, rp runProps) {
	fmt.Fprintf(w.out, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/>`, colW*s.span)
	if s.span > 1 {
		fmt.Fprintf(w.out, `<w:gridSpan w:val="%d"/>`, s.span)
	}
	switch s.merge {
	case "restart":
		w.out.WriteString(`<w:vMerge w:val="restart"/>`)
	case "continue":
		w.out.WriteString(`<w:vMerge/>`)
	}
	if s.cell != nil {
		if fill, ok := parseColor(parseStyle(attr(s.cell, "style"))["background-color"]); ok {
			w.out.WriteString(`<w:shd w:val="clear" w:color="auto" w:fill="` + fill + `"/>`)
		}
	}
	w.out.WriteString("</w:tcPr>")

	content := ""
	if s.cell != nil {
		saved := w.out
		w.out = &strings.Builder{}
		crp := rp.with(s.cell)
		crp.fill = ""
		w.container(s.cell, paraProps{jc: alignment(s.cell)}, crp)
		content = w.out.String()
		w.out = saved
	}
	// A cell must end with a paragraph.
	if content == "" || strings.HasSuffix(content, "</w:tbl>") {
		content += "<w:p/>"
	}
	w.out.WriteString(content + "</w:tc>")
}
