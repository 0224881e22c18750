package substitute

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/sections"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// Report cell texts.
const (
	MsgToFill      = "(待填写)"
	MsgReportEmpty = "(无数据)"
)

const (
	reportHeadStyle = `border: 1px solid #ddd; padding: 8px; background: #e0e0e0; text-align: center;`
	reportSubStyle  = `border: 1px solid #ddd; padding: 8px; background: #f5f5f5; text-align: center;`
)

// ApplyColumns returns a copy of hs with each configured column's data type,
// value, query and data source set on its header. cols is keyed by column
// index.
func ApplyColumns(hs []analysis.Header, cols map[int]store.ColumnConfig) []analysis.Header {
	out := make([]analysis.Header, len(hs))
	for i, h := range hs {
		if c, ok := cols[h.Index]; ok {
			h.DataType = c.DataType
			h.Value = c.Value
			h.SQLQuery = c.SQLQuery
			h.DataSourceID = nil
			if c.DataSourceID != "" {
				id := c.DataSourceID
				h.DataSourceID = &id
			}
		}
		out[i] = h
	}
	return out
}

// Report builds a filled report from a template structure: a heading per
// section followed by its configured content. Table sections are rebuilt
// from their headers, with merged groups as a two-row header. Sections with
// no column config keep only their heading.
func (e *Engine) Report(ctx context.Context, doc *sections.DocumentStructure, cols []store.ColumnConfig) (*Result, error) {
	bySection := map[string]map[int]store.ColumnConfig{}
	for _, c := range cols {
		if bySection[c.SectionID] == nil {
			bySection[c.SectionID] = map[int]store.ColumnConfig{}
		}
		bySection[c.SectionID][c.Index] = c
	}
	res := &Result{}
	p := &pass{engine: e, res: res, cache: map[string]*answer{}}
	var b strings.Builder
	if doc.Title != "" && doc.Title != sections.UnknownTitle {
		fmt.Fprintf(&b, `<h1 style="text-align: center;">%s</h1>`, html.EscapeString(doc.Title))
	}
	for _, s := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		level := min(max(s.Level, 1), 3)
		fmt.Fprintf(&b, "<h%d>%s</h%d>", level, html.EscapeString(s.Title), level)
		cfg := bySection[s.ID]
		if len(cfg) == 0 {
			continue
		}
		if s.HasTable && s.TableStructure != nil && len(s.TableStructure.Headers) > 0 {
			b.WriteString(p.reportTable(ctx, ApplyColumns(s.TableStructure.Headers, cfg)))
			continue
		}
		if c, ok := cfg[0]; ok {
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(p.reportText(ctx, c)))
		}
	}
	res.HTML = b.String()
	e.log().Debug("report built", "sections", len(doc.Sections), "configs", len(cols), "errors", len(res.Errors))
	return res, nil
}

// columnRows runs a column query once per report.
func (p *pass) columnRows(ctx context.Context, sourceID, query string) (*datasource.ResultSet, error) {
	return p.query(ctx, &store.Dataset{
		ID:           "column\x00" + sourceID + "\x00" + query,
		Name:         datasource.MockSourceName,
		Type:         store.DatasetList,
		SQLQuery:     query,
		DataSourceID: sourceID,
	})
}

func (p *pass) reportText(ctx context.Context, c store.ColumnConfig) string {
	switch c.DataType {
	case analysis.DataManual:
		return orText(c.Value, MsgToFill)
	case analysis.DataDynamic:
		rs, err := p.columnRows(ctx, c.DataSourceID, c.SQLQuery)
		if err != nil {
			p.fail("report", err.Error())
			return queryErrorText(err)
		}
		first := rs.First()
		if first == nil || len(rs.Columns) == 0 {
			return MsgReportEmpty
		}
		if len(rs.Rows) == 1 && len(rs.Columns) == 1 {
			return datasource.Format(first[rs.Columns[0]])
		}
		lines := make([]string, 0, len(rs.Rows))
		for _, r := range rs.Rows {
			vals := make([]string, len(rs.Columns))
			for i, col := range rs.Columns {
				vals[i] = datasource.Format(r[col])
			}
			lines = append(lines, strings.Join(vals, " "))
		}
		return strings.Join(lines, "; ")
	default:
		return c.Value
	}
}

// reportTable renders headers plus data rows. Dynamic columns read their own
// field from the query result, by header name, then original name, then
// position among the columns sharing that query.
func (p *pass) reportTable(ctx context.Context, hs []analysis.Header) string {
	type result struct {
		rs  *datasource.ResultSet
		err error
	}
	results := map[string]result{}
	position := make([]int, len(hs))
	seen := map[string]int{}
	rowCount := 1
	for i, h := range hs {
		if h.DataType != analysis.DataDynamic {
			continue
		}
		src := ""
		if h.DataSourceID != nil {
			src = *h.DataSourceID
		}
		key := src + "\x00" + h.SQLQuery
		position[i] = seen[key]
		seen[key]++
		if _, ok := results[key]; ok {
			continue
		}
		rs, err := p.columnRows(ctx, src, h.SQLQuery)
		if err != nil {
			p.fail("report", err.Error())
		} else {
			rowCount = max(rowCount, len(rs.Rows))
		}
		results[key] = result{rs: rs, err: err}
	}

	var b strings.Builder
	b.WriteString(`<table style="` + miniTableStyle + `">`)
	writeReportHeader(&b, hs)
	for r := 0; r < rowCount; r++ {
		b.WriteString("<tr>")
		for i, h := range hs {
			var text string
			switch h.DataType {
			case analysis.DataDynamic:
				src := ""
				if h.DataSourceID != nil {
					src = *h.DataSourceID
				}
				res := results[src+"\x00"+h.SQLQuery]
				switch {
				case res.err != nil:
					text = queryErrorText(res.err)
				case res.rs.Empty():
					text = MsgReportEmpty
				case r >= len(res.rs.Rows):
					text = ""
				default:
					text = columnValue(res.rs, res.rs.Rows[r], h, position[i])
				}
			case analysis.DataManual:
				text = orText(h.Value, MsgToFill)
			default:
				text = h.Value
			}
			b.WriteString(`<td style="` + miniCellStyle + `">` + html.EscapeString(text) + `</td>`)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

// writeReportHeader emits one header row, or two when any column has a
// parent. Adjacent children of one parent share a spanning cell.
func writeReportHeader(b *strings.Builder, hs []analysis.Header) {
	groups := analysis.GroupHeaders(hs)
	merged := false
	for _, g := range groups {
		if g.Parent != "" {
			merged = true
			break
		}
	}
	b.WriteString("<tr>")
	for _, g := range groups {
		switch {
		case g.Parent != "":
			b.WriteString(`<th colspan="` + strconv.Itoa(len(g.Headers)) + `" style="` + reportHeadStyle + `">` +
				html.EscapeString(g.Parent) + `</th>`)
		case merged:
			b.WriteString(`<th rowspan="2" style="` + reportHeadStyle + `">` + html.EscapeString(g.Headers[0].Name) + `</th>`)
		default:
			b.WriteString(`<th style="` + reportHeadStyle + `">` + html.EscapeString(g.Headers[0].Name) + `</th>`)
		}
	}
	b.WriteString("</tr>")
	if !merged {
		return
	}
	b.WriteString("<tr>")
	for _, g := range groups {
		if g.Parent == "" {
			continue
		}
		for _, h := range g.Headers {
			b.WriteString(`<th style="` + reportSubStyle + `">` + html.EscapeString(h.Name) + `</th>`)
		}
	}
	b.WriteString("</tr>")
}

func columnValue(rs *datasource.ResultSet, row datasource.Row, h analysis.Header, pos int) string {
	for _, key := range []string{h.Name, h.OriginalName} {
		if key != "" && slices.Contains(rs.Columns, key) {
			return datasource.Format(row[key])
		}
	}
	if pos < len(rs.Columns) {
		return datasource.Format(row[rs.Columns[pos]])
	}
	return ""
}

func queryErrorText(err error) string {
	return "(" + MsgQueryError + ": " + err.Error() + ")"
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
