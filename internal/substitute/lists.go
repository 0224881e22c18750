package substitute

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/KaramelBytes/docshape-cli/internal/markup"
)

const (
	classListStart = "dataset-placeholder-start"
	classListField = "dataset-placeholder-field"
	classListData  = "dataset-placeholder-data"
)

// lists expands list placeholders that sit inside table cells. Each affected
// top-level table is parsed, edited as a tree and spliced back in place.
func (p *pass) lists(ctx context.Context, src string) string {
	var targets []markup.Element
	for _, t := range markup.Find(src, "table", nil) {
		if strings.Contains(t.Outer(src), classListStart) {
			targets = append(targets, t)
		}
	}
	return markup.Splice(src, targets, func(_ int, el markup.Element) string {
		orig := el.Outer(src)
		out, err := p.expandTable(ctx, orig)
		if err != nil {
			p.engine.log().Warn("list placeholder table left unchanged", "err", err)
			return orig
		}
		return out
	})
}

func (p *pass) expandTable(ctx context.Context, tableHTML string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(tableHTML), body)
	if err != nil {
		return "", err
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	var starts []*html.Node
	walk(root, func(n *html.Node) {
		if hasClass(n, classListStart) {
			starts = append(starts, n)
		}
	})
	for _, ph := range starts {
		p.expandList(ctx, ph)
	}
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (p *pass) expandList(ctx context.Context, ph *html.Node) {
	cell := closest(ph, atom.Td, atom.Th)
	if cell == nil {
		return
	}
	row := closest(cell, atom.Tr)
	table := closest(cell, atom.Table)
	if row == nil || table == nil {
		return
	}
	r := refFromAttrs(attrMap(ph))
	fields := splitFields(attr(ph, "data-display-fields"))

	d, err := p.resolve(ctx, r)
	if err != nil {
		p.fail("list", err.Error())
		replaceWith(ph, markerNode(MsgProcessError))
		return
	}
	if d == nil {
		p.fail("list", MsgDatasetMissing+": "+r.label())
		replaceWith(ph, markerNode(MsgDatasetMissing+": "+r.label()))
		return
	}
	if len(fields) == 0 {
		fields = d.Fields
	}
	rs, err := p.query(ctx, d)
	if err != nil {
		p.fail("list", err.Error())
		replaceWith(ph, markerNode(MsgProcessError+": "+err.Error()))
		return
	}
	ph.Parent.RemoveChild(ph)
	if rs.Empty() {
		removeLeftovers(table)
		return
	}

	rows := tableRows(table)
	rowIdx := indexOf(rows, row)
	cells := rowCells(row)
	cellIdx := indexOf(cells, cell)

	for i, f := range fields {
		if cellIdx+i >= len(cells) {
			break
		}
		strong := &html.Node{Type: html.ElementNode, Data: "strong", DataAtom: atom.Strong}
		strong.AppendChild(&html.Node{Type: html.TextNode, Data: f})
		setChildren(cells[cellIdx+i], strong)
	}

	width := len(cells)
	if first := rowCells(rows[0]); len(first) > width {
		width = len(first)
	}
	for ri, rec := range rs.Rows {
		var tr *html.Node
		if next := rowIdx + 1 + ri; next < len(rows) {
			tr = rows[next]
		} else {
			tr = newRow(width)
			last := rows[len(rows)-1]
			last.Parent.InsertBefore(tr, last.NextSibling)
			rows = append(rows, tr)
		}
		dcells := rowCells(tr)
		for ci, f := range fields {
			if cellIdx+ci >= len(dcells) {
				break
			}
			setChildren(dcells[cellIdx+ci], &html.Node{Type: html.TextNode, Data: value(rec, f)})
		}
	}
	removeLeftovers(table)
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func closest(n *html.Node, tags ...atom.Atom) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if cur.DataAtom == t {
				return cur
			}
		}
	}
	return nil
}

// tableRows lists the rows owned by table, skipping nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.DataAtom == atom.Tr {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func rowCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
			cells = append(cells, c)
		}
	}
	return cells
}

func indexOf(list []*html.Node, n *html.Node) int {
	for i, x := range list {
		if x == n {
			return i
		}
	}
	return 0
}

func newRow(cells int) *html.Node {
	tr := &html.Node{Type: html.ElementNode, Data: "tr", DataAtom: atom.Tr}
	for range cells {
		tr.AppendChild(&html.Node{Type: html.ElementNode, Data: "td", DataAtom: atom.Td})
	}
	return tr
}

func setChildren(n *html.Node, kids ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, k := range kids {
		n.AppendChild(k)
	}
}

func replaceWith(old, repl *html.Node) {
	old.Parent.InsertBefore(repl, old)
	old.Parent.RemoveChild(old)
}

func markerNode(text string) *html.Node {
	span := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span,
		Attr: []html.Attribute{{Key: "style", Val: "color: red;"}}}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return span
}

func removeLeftovers(table *html.Node) {
	var doomed []*html.Node
	walk(table, func(n *html.Node) {
		if hasClass(n, classListField) || hasClass(n, classListData) {
			doomed = append(doomed, n)
		}
	})
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}
