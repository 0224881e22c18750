package analysis

import "fmt"

type headerList struct {
	headers []Header
}

func (l *headerList) add(name, original string, parent *string) {
	l.headers = append(l.headers, Header{
		Index:        len(l.headers),
		Name:         name,
		OriginalName: original,
		ParentHeader: parent,
		DataType:     DataFixed,
	})
}

func (l *headerList) single(name string) { l.add(name, name, nil) }

func (l *headerList) child(name, parent string) {
	p := parent
	l.add(name, name, &p)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func columnName(text string, i int) string { return orDefault(text, fmt.Sprintf("列%d", i+1)) }

func parentName(text string, i int) string { return orDefault(text, fmt.Sprintf("合并列%d", i+1)) }

func childName(text, parent string, j int) string {
	return orDefault(text, fmt.Sprintf("%s子列%d", parent, j+1))
}

// SimpleHeaders emits one header per cell of the header row.
func SimpleHeaders(row []Cell) []Header {
	out := make([]Header, 0, len(row))
	for i, c := range row {
		out = append(out, Header{
			Index:        i,
			Name:         columnName(c.Text, i),
			OriginalName: c.Text,
			DataType:     DataFixed,
		})
	}
	return out
}

// MergedHeaders builds grouped headers from the first two rows. Explicit
// colspans take precedence over the implicit row-length rule. Children of
// one parent are always emitted contiguously.
func MergedHeaders(rows [][]Cell) []Header {
	if len(rows) < 2 {
		if len(rows) == 0 {
			return []Header{}
		}
		return SimpleHeaders(rows[0])
	}
	first, second := rows[0], rows[1]
	if IsExplicitMerge(rows) {
		return explicitHeaders(first, second)
	}
	if IsImplicitMerge(rows) {
		return implicitHeaders(first, second)
	}
	return SimpleHeaders(first)
}

// implicitHeaders maps every first-row cell but the last to one second-row
// column; the last first-row cell parents all remaining second-row cells.
func implicitHeaders(first, second []Cell) []Header {
	if len(first) == 0 {
		return SimpleHeaders(second)
	}
	var l headerList
	next := 0
	last := len(first) - 1
	for i, c := range first[:last] {
		l.single(columnName(c.Text, i))
		next++
	}
	parent := parentName(first[last].Text, last)
	for j, c := range second[next:] {
		l.child(childName(c.Text, parent, j), parent)
	}
	return l.headers
}

// explicitHeaders consumes second-row cells according to first-row colspans.
// A first-row cell spanning both rows covers its column without consuming a
// second-row cell. Unclaimed second-row cells become standalone columns.
func explicitHeaders(first, second []Cell) []Header {
	var l headerList
	next := 0
	for i, c := range first {
		if c.ColSpan > 1 {
			parent := parentName(c.Text, i)
			for j := 0; j < c.ColSpan; j++ {
				text := ""
				if next < len(second) {
					text = second[next].Text
					next++
				}
				l.child(childName(text, parent, j), parent)
			}
			continue
		}
		l.single(columnName(c.Text, i))
		if c.RowSpan <= 1 && next < len(second) {
			next++
		}
	}
	for _, c := range second[next:] {
		l.single(columnName(c.Text, len(l.headers)))
	}
	return l.headers
}

// HeaderGroup is a run of adjacent headers sharing one parent. Parent is ""
// for a standalone column, which always forms a group of one.
type HeaderGroup struct {
	Parent  string
	Headers []Header
}

// GroupHeaders splits hs into adjacent runs by parent name. Order is kept,
// so a table rebuilt from the groups has the same column order as hs.
func GroupHeaders(hs []Header) []HeaderGroup {
	var out []HeaderGroup
	for _, h := range hs {
		p := h.Parent()
		if n := len(out); p != "" && n > 0 && out[n-1].Parent == p {
			out[n-1].Headers = append(out[n-1].Headers, h)
			continue
		}
		out = append(out, HeaderGroup{Parent: p, Headers: []Header{h}})
	}
	return out
}
