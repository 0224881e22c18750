package analysis

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cell is one parsed table cell.
type Cell struct {
	Text     string
	ColSpan  int
	RowSpan  int
	IsHeader bool
	Bold     bool
}

// ParseRows parses the rows of the outermost table in tableHTML. Rows of
// nested tables are not included, but their text counts toward the cell that
// contains them.
func ParseRows(tableHTML string) [][]Cell {
	doc, err := html.Parse(strings.NewReader(tableHTML))
	if err != nil {
		return nil
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil
	}
	var rows [][]Cell
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, parseRow(c))
			case atom.Table:
				// nested table rows belong to the nested table
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func parseRow(tr *html.Node) []Cell {
	row := []Cell{}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		row = append(row, Cell{
			Text:     cellText(c),
			ColSpan:  spanAttr(c, "colspan"),
			RowSpan:  spanAttr(c, "rowspan"),
			IsHeader: c.DataAtom == atom.Th,
			Bold:     isBold(c),
		})
	}
	return row
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, a); f != nil {
			return f
		}
	}
	return nil
}

func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "\u00a0", " "))
}

// Span limits, matching what browsers accept.
const (
	MaxColSpan = 1000
	MaxRowSpan = 65534
)

// ClampSpan bounds a colspan or rowspan value to [1, limit].
func ClampSpan(v, limit int) int {
	return min(max(v, 1), limit)
}

// spanAttr reads colspan/rowspan; missing or invalid values default to 1.
func spanAttr(n *html.Node, key string) int {
	limit := MaxColSpan
	if key == "rowspan" {
		limit = MaxRowSpan
	}
	for _, a := range n.Attr {
		if a.Key != key {
			continue
		}
		v, err := strconv.Atoi(strings.Trim(strings.TrimSpace(a.Val), `"'`))
		if err != nil {
			return 1
		}
		return ClampSpan(v, limit)
	}
	return 1
}

// isBold reports whether all text of the cell sits under strong/b or a bold style.
func isBold(n *html.Node) bool {
	sawText := false
	bold := true
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inBold bool) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Strong, atom.B:
				inBold = true
			}
			for _, a := range n.Attr {
				if a.Key == "style" && strings.Contains(strings.ReplaceAll(strings.ToLower(a.Val), " ", ""), "font-weight:bold") {
					inBold = true
				}
			}
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			sawText = true
			if !inBold {
				bold = false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBold)
		}
	}
	walk(n, false)
	return sawText && bold
}

// ColumnCount returns the widest row measured in colspans.
func ColumnCount(rows [][]Cell) int {
	maxCols := 0
	for _, row := range rows {
		n := 0
		for _, c := range row {
			n += max(c.ColSpan, 1)
		}
		maxCols = max(maxCols, n)
	}
	return maxCols
}
