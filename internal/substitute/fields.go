package substitute

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/markup"
)

// Dynamic field kinds carried in data-field-type.
const (
	FieldDate    = "DATE"
	FieldSystem  = "SYSTEM"
	FieldDynamic = "DYNAMIC"
	FieldFixed   = "FIXED"
)

// dynamicFields resolves date, system, query and fixed field spans.
func (p *pass) dynamicFields(ctx context.Context, src string) string {
	els := markup.Find(src, "span", markup.WithClass(classDynField))
	return markup.Splice(src, els, func(_ int, el markup.Element) string {
		switch el.Attr("data-field-type") {
		case FieldDate:
			return html.EscapeString(FormatDate(p.engine.now(), el.Attr("data-date-format")))
		case FieldSystem:
			return html.EscapeString(p.systemValue(el.Attr("data-system-variable")))
		case FieldDynamic:
			return html.EscapeString(p.dynamicValue(ctx, el.Attr("data-source-id"), el.Attr("data-sql")))
		case FieldFixed:
			return html.EscapeString(el.Attr("data-default-value"))
		default:
			return el.Inner(src)
		}
	})
}

func (p *pass) systemValue(name string) string {
	switch name {
	case "CURRENT_USER":
		return p.vars.user()
	case "DEPARTMENT":
		return p.vars.department()
	case "REPORT_TIME":
		return p.engine.now().Format("2006-01-02 15:04:05")
	case "SYSTEM_VERSION":
		return p.vars.version()
	default:
		return name
	}
}

// dynamicValue returns the first column of the first row of an ad-hoc query.
func (p *pass) dynamicValue(ctx context.Context, sourceID, query string) string {
	if sourceID == "" || query == "" {
		return MsgQueryConfig
	}
	rs, err := p.engine.run(ctx, sourceID, query, sourceID)
	if err != nil {
		mock, ok := p.fallback(datasource.MockSourceName, err)
		if !ok {
			p.fail("dynamic-field", err.Error())
			return MsgQueryError
		}
		rs = mock
	}
	first := rs.First()
	if first == nil || len(rs.Columns) == 0 {
		return MsgNoData
	}
	return datasource.Format(first[rs.Columns[0]])
}

// FormatDate renders now for a date placeholder. Named formats cover the
// editor presets; anything else is read as a moment-style layout.
func FormatDate(now time.Time, format string) string {
	switch format {
	case "", "YYYY-MM-DD":
		return now.Format("2006-01-02")
	case "YYYY年MM月DD日":
		return now.Format("2006年01月02日")
	case "YYYY年M月":
		return fmt.Sprintf("%d年%d月", now.Year(), int(now.Month()))
	case "YYYY年":
		return fmt.Sprintf("%d年", now.Year())
	case "M月":
		return fmt.Sprintf("%d月", int(now.Month()))
	case "PREV_MONTH":
		return fmt.Sprintf("%d月", int(addMonths(now, -1).Month()))
	case "NEXT_MONTH":
		return fmt.Sprintf("%d月", int(addMonths(now, 1).Month()))
	default:
		return formatMoment(now, format)
	}
}

// addMonths shifts by whole months, clamping to the last day of the target
// month.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

var momentTokens = []string{"YYYY", "YY", "MM", "M", "DD", "D", "HH", "H", "hh", "h", "mm", "m", "ss", "s", "A"}

func formatMoment(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); {
		if layout[i] == '[' {
			if end := strings.IndexByte(layout[i:], ']'); end > 0 {
				b.WriteString(layout[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		tok := ""
		for _, cand := range momentTokens {
			if strings.HasPrefix(layout[i:], cand) {
				tok = cand
				break
			}
		}
		if tok == "" {
			b.WriteByte(layout[i])
			i++
			continue
		}
		b.WriteString(momentToken(t, tok))
		i += len(tok)
	}
	return b.String()
}

func momentToken(t time.Time, tok string) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return fmt.Sprint(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return fmt.Sprint(t.Day())
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return fmt.Sprint(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return fmt.Sprint(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return fmt.Sprint(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return fmt.Sprint(t.Second())
	case "A":
		if t.Hour() < 12 {
			return "上午"
		}
		return "下午"
	}
	return tok
}
