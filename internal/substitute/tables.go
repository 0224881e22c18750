package substitute

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strings"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/markup"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// Table modes for dynamic tables without a dataset.
const (
	ModeSQL     = "SQL"
	ModeDataset = "DATASET"
)

// maxMappedRows caps DATASET-mode tables.
const maxMappedRows = 10

const (
	fullTableStyle = `width: 100%; border-collapse: collapse; border: 1px solid #ddd;`
	fullHeadStyle  = `border: 1px solid #ddd; padding: 8px; text-align: left;`
	fullCellStyle  = `border: 1px solid #ddd; padding: 8px;`
)

// column maps a source field onto a rendered column title.
type column struct {
	Title string `json:"title"`
	Field string `json:"field"`
}

// dynamicTables renders standalone table blocks from a dataset or an ad-hoc
// query.
func (p *pass) dynamicTables(ctx context.Context, src string) string {
	els := markup.Find(src, "div", markup.WithClass(classDynamicTbl))
	return markup.Splice(src, els, func(_ int, el markup.Element) string {
		r := refFromAttrs(el.Attrs)
		if r.ID != "" || r.Name != "" {
			return p.datasetTable(ctx, el, r)
		}
		return p.queryTable(ctx, el, el.Outer(src))
	})
}

func (p *pass) datasetTable(ctx context.Context, el markup.Element, r ref) string {
	d, err := p.resolve(ctx, r)
	if err != nil {
		p.fail("dynamic-table", err.Error())
		return marker(MsgProcessError + ": " + err.Error())
	}
	if d == nil {
		p.fail("dynamic-table", MsgDatasetMissing+": "+r.label())
		return missingMarker(r.label())
	}
	kind := el.Attr(attrDataType)
	if kind == "" {
		kind = el.Attr("data-data-structure")
	}
	fields := splitFields(el.Attr(attrDisplayField))
	if len(fields) == 0 {
		fields = d.Fields
	}
	if (kind != "" && !strings.EqualFold(kind, store.DatasetList)) || len(fields) == 0 {
		return MsgConfigError
	}
	rs, err := p.query(ctx, d)
	if err != nil {
		p.fail("dynamic-table", err.Error())
		return marker(MsgProcessError + ": " + err.Error())
	}
	return miniTable(rs.Rows, fields)
}

func (p *pass) queryTable(ctx context.Context, el markup.Element, orig string) string {
	title := el.Attr("data-table-title")
	sourceID := el.Attr("data-source-id")
	query := el.Attr("data-sql")
	mode := el.Attr("data-mode")
	if mode == "" {
		mode = ModeSQL
	}

	var (
		rs  *datasource.ResultSet
		err error
	)
	switch {
	case mode == ModeSQL && sourceID != "" && query != "":
		rs, err = p.tableRows(ctx, sourceID, query)
	case mode == ModeDataset:
		rs, err = p.mappedRows(ctx, sourceID, query, el.Attr("data-columns"))
	default:
		return orig
	}
	if err != nil {
		p.fail("dynamic-table", err.Error())
		return `<div><h4>` + html.EscapeString(title) + `</h4><p>` +
			html.EscapeString(MsgTableFailed+": "+err.Error()) + `</p></div>`
	}
	return fullTable(rs)
}

func (p *pass) tableRows(ctx context.Context, sourceID, query string) (*datasource.ResultSet, error) {
	rs, err := p.engine.run(ctx, sourceID, query, sourceID)
	if err != nil {
		mock, ok := p.fallback(datasource.MockSourceName, err)
		if !ok {
			return nil, err
		}
		rs = mock
	}
	return rs, nil
}

// mappedRows projects query rows onto the configured column titles.
func (p *pass) mappedRows(ctx context.Context, sourceID, query, columnsJSON string) (*datasource.ResultSet, error) {
	if columnsJSON == "" {
		return nil, errors.New("数据集列配置缺失")
	}
	var cols []column
	if err := json.Unmarshal([]byte(columnsJSON), &cols); err != nil {
		return nil, err
	}
	src, err := p.tableRows(ctx, sourceID, query)
	if err != nil {
		return nil, err
	}
	out := &datasource.ResultSet{}
	for _, c := range cols {
		out.Columns = append(out.Columns, c.Title)
	}
	for i, row := range src.Rows {
		if i == maxMappedRows {
			break
		}
		m := make(datasource.Row, len(cols))
		for _, c := range cols {
			v := row[c.Field]
			if v == nil {
				v = ""
			}
			m[c.Title] = v
		}
		out.Rows = append(out.Rows, m)
	}
	return out, nil
}

// fullTable renders every column of rs; zero rows render as "".
func fullTable(rs *datasource.ResultSet) string {
	if rs.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<table style="` + fullTableStyle + `"><thead><tr style="background-color: #f5f5f5;">`)
	for _, c := range rs.Columns {
		b.WriteString(`<th style="` + fullHeadStyle + `">` + html.EscapeString(c) + `</th>`)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, r := range rs.Rows {
		b.WriteString(`<tr>`)
		for _, c := range rs.Columns {
			b.WriteString(`<td style="` + fullCellStyle + `">` + html.EscapeString(datasource.Format(r[c])) + `</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}
