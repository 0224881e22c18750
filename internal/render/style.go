package render

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// runProps is the character formatting inherited down the inline tree.
type runProps struct {
	bold, italic, underline, strike bool
	vertAlign                       string
	color                           string
	halfPoints                      int
	fill                            string
}

// with returns p updated by the element's tag and inline style.
func (p runProps) with(n *html.Node) runProps {
	switch n.DataAtom {
	case atom.Strong, atom.B, atom.Th:
		p.bold = true
	case atom.Em, atom.I, atom.Cite, atom.Var:
		p.italic = true
	case atom.U, atom.Ins:
		p.underline = true
	case atom.Del, atom.S, atom.Strike:
		p.strike = true
	case atom.Sup:
		p.vertAlign = "superscript"
	case atom.Sub:
		p.vertAlign = "subscript"
	case atom.A:
		p.underline = true
		if p.color == "" {
			p.color = "0563C1"
		}
	}
	css := parseStyle(attr(n, "style"))
	if c, ok := parseColor(css["color"]); ok {
		p.color = c
	}
	if c, ok := parseColor(css["background-color"]); ok {
		p.fill = c
	}
	if hp := parseFontSize(css["font-size"]); hp > 0 {
		p.halfPoints = hp
	}
	switch w := css["font-weight"]; {
	case w == "bold" || w == "bolder":
		p.bold = true
	case w == "normal" || w == "lighter":
		p.bold = false
	default:
		if weight, err := strconv.Atoi(w); err == nil {
			p.bold = weight >= 600
		}
	}
	if css["font-style"] == "italic" {
		p.italic = true
	}
	if d := css["text-decoration"]; d != "" {
		if strings.Contains(d, "underline") {
			p.underline = true
		}
		if strings.Contains(d, "line-through") {
			p.strike = true
		}
	}
	return p
}

func (p runProps) xml() string {
	var b strings.Builder
	if p.bold {
		b.WriteString(`<w:b/><w:bCs/>`)
	}
	if p.italic {
		b.WriteString(`<w:i/><w:iCs/>`)
	}
	if p.strike {
		b.WriteString(`<w:strike/>`)
	}
	if p.color != "" {
		b.WriteString(`<w:color w:val="` + p.color + `"/>`)
	}
	if p.halfPoints > 0 {
		fmt.Fprintf(&b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, p.halfPoints, p.halfPoints)
	}
	if p.underline {
		b.WriteString(`<w:u w:val="single"/>`)
	}
	if p.fill != "" {
		b.WriteString(`<w:shd w:val="clear" w:color="auto" w:fill="` + p.fill + `"/>`)
	}
	if p.vertAlign != "" {
		b.WriteString(`<w:vertAlign w:val="` + p.vertAlign + `"/>`)
	}
	if b.Len() == 0 {
		return ""
	}
	return "<w:rPr>" + b.String() + "</w:rPr>"
}

// parseStyle splits an inline style attribute into lower-cased declarations.
func parseStyle(s string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important")))
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

var namedColors = map[string]string{
	"black":  "000000",
	"white":  "FFFFFF",
	"red":    "FF0000",
	"green":  "008000",
	"blue":   "0000FF",
	"yellow": "FFFF00",
	"orange": "FFA500",
	"purple": "800080",
	"gray":   "808080",
	"grey":   "808080",
}

// parseColor converts #rgb, #rrggbb, rgb() and a few named colours to
// OOXML hex.
func parseColor(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		h := v[1:]
		if len(h) == 3 {
			h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
		}
		if len(h) != 6 {
			return "", false
		}
		if _, err := strconv.ParseUint(h, 16, 32); err != nil {
			return "", false
		}
		return strings.ToUpper(h), true
	}
	if strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")") {
		parts := strings.Split(v[4:len(v)-1], ",")
		if len(parts) != 3 {
			return "", false
		}
		var out [3]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return "", false
			}
			out[i] = n
		}
		return fmt.Sprintf("%02X%02X%02X", out[0], out[1], out[2]), true
	}
	return "", false
}

// parseFontSize returns the size in half-points for pt and px values.
func parseFontSize(v string) int {
	var unit string
	switch {
	case strings.HasSuffix(v, "pt"):
		unit = "pt"
	case strings.HasSuffix(v, "px"):
		unit = "px"
	default:
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, unit)), 64)
	if err != nil || f <= 0 {
		return 0
	}
	if unit == "px" {
		f *= 0.75
	}
	return int(f*2 + 0.5)
}

var alignments = map[string]string{
	"left":    "left",
	"start":   "left",
	"center":  "center",
	"right":   "right",
	"end":     "right",
	"justify": "both",
}

// alignment reads text-align (or the legacy align attribute) as a w:jc value.
func alignment(n *html.Node) string {
	if jc := alignments[parseStyle(attr(n, "style"))["text-align"]]; jc != "" {
		return jc
	}
	return alignments[strings.ToLower(attr(n, "align"))]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
