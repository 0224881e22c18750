package substitute

import (
	"context"
	"html"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/markup"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

const (
	classInline      = "dataset-placeholder-inline"
	classDiv         = "dataset-placeholder"
	classDynField    = "dynamic-field"
	classDynamicTbl  = "dynamic-table"
	attrFieldName    = "data-field-name"
	attrDataType     = "data-data-type"
	attrDisplayField = "data-display-fields"
)

// inlines fills single-field spans. Spans are grouped by dataset so each
// dataset is queried once.
func (p *pass) inlines(ctx context.Context, src string) string {
	els := markup.Find(src, "span", markup.WithClass(classInline))
	if len(els) == 0 {
		return src
	}
	type group struct {
		ref     ref
		members []int
	}
	var order []string
	groups := map[string]*group{}
	for i, el := range els {
		r := refFromAttrs(el.Attrs)
		k := r.key()
		g, ok := groups[k]
		if !ok {
			g = &group{ref: r}
			groups[k] = g
			order = append(order, k)
		}
		g.members = append(g.members, i)
	}

	repl := make([]string, len(els))
	for _, k := range order {
		g := groups[k]
		d, err := p.resolve(ctx, g.ref)
		if err == nil && d == nil {
			p.fail("inline", MsgDatasetMissing+": "+g.ref.label())
			for _, i := range g.members {
				repl[i] = marker("[" + els[i].Attr(attrFieldName) + "]")
			}
			continue
		}
		var first datasource.Row
		if err == nil {
			var rs *datasource.ResultSet
			rs, err = p.query(ctx, d)
			if err == nil {
				first = rs.First()
			}
		}
		if err != nil {
			p.fail("inline", err.Error())
			for _, i := range g.members {
				repl[i] = marker(MsgInlineError)
			}
			continue
		}
		for _, i := range g.members {
			repl[i] = html.EscapeString(value(first, els[i].Attr(attrFieldName)))
		}
	}
	return markup.Splice(src, els, func(i int, _ markup.Element) string { return repl[i] })
}

// divs replaces block placeholders with a single value or a list table.
func (p *pass) divs(ctx context.Context, src string) string {
	els := markup.Find(src, "div", markup.WithClass(classDiv))
	return markup.Splice(src, els, func(_ int, el markup.Element) string {
		return p.divValue(ctx, el)
	})
}

func (p *pass) divValue(ctx context.Context, el markup.Element) string {
	r := refFromAttrs(el.Attrs)
	d, err := p.resolve(ctx, r)
	if err != nil {
		p.fail("div", err.Error())
		return marker(MsgProcessError + ": " + err.Error())
	}
	if d == nil {
		p.fail("div", MsgDatasetMissing+": "+r.label())
		return missingMarker(r.label())
	}
	kind := el.Attr(attrDataType)
	if kind == "" {
		kind = d.Type
	}
	field := el.Attr(attrFieldName)
	fields := splitFields(el.Attr(attrDisplayField))
	if kind == store.DatasetList && len(fields) == 0 {
		fields = d.Fields
	}
	switch {
	case kind == store.DatasetSingle && field != "":
	case kind == store.DatasetList && len(fields) > 0:
	default:
		return MsgConfigError
	}

	rs, err := p.query(ctx, d)
	if err != nil {
		p.fail("div", err.Error())
		return marker(MsgProcessError + ": " + err.Error())
	}
	if kind == store.DatasetList {
		return miniTable(rs.Rows, fields)
	}
	first := rs.First()
	if first == nil {
		return MsgNoData
	}
	if v, ok := first[field]; !ok || v == nil {
		return MsgNoData
	}
	return html.EscapeString(value(first, field))
}
