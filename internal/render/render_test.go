package render_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/KaramelBytes/docshape-cli/internal/parser"
	"github.com/KaramelBytes/docshape-cli/internal/render"
)

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func roundTrip(t *testing.T, src string) string {
	t.Helper()
	data, err := render.Render(src)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out, err := parser.Convert(data)
	if err != nil {
		t.Fatalf("convert rendered docx: %v", err)
	}
	return out.HTML
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open %s: %v", name, err)
			}
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return string(b)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestRenderRoundTrip(t *testing.T) {
	src := `<h1>审计报告</h1>` +
		`<p><strong>粗</strong><em>斜</em><span style="color: red;">红</span></p>` +
		`<div class="page-break"></div>` +
		`<h2 style="text-align:center">数据</h2>` +
		`<table><tr><th colspan="2">合并表头</th><th rowspan="2">备注</th></tr><tr><td>a</td><td>b</td></tr></table>` +
		`<p><img src="` + pngDataURI(t) + `" alt="图"></p>`
	got := roundTrip(t, src)
	want := []string{
		`<h1>审计报告</h1>`,
		`<p><strong>粗</strong><em>斜</em><span style="color: #FF0000">红</span></p>`,
		`<div class="page-break"></div>`,
		`<h2 style="text-align: center">数据</h2>`,
		`<tr><th colspan="2"><p><strong>合并表头</strong></p></th><th rowspan="2"><p><strong>备注</strong></p></th></tr>`,
		`<tr><td><p>a</p></td><td><p>b</p></td></tr>`,
		`<img src="data:image/png;base64,`,
		`alt="图"`,
	}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Fatalf("missing %q in:\n%s", w, got)
		}
	}
}

func TestRenderPackageParts(t *testing.T) {
	data, err := render.Render(`<h3>x</h3><img src="` + pngDataURI(t) + `">`)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(readPart(t, data, "word/document.xml"), `<w:pStyle w:val="Heading3"/>`) {
		t.Fatal("heading style not applied")
	}
	styles := readPart(t, data, "word/styles.xml")
	for _, id := range []string{"Normal", "Heading1", "Heading6", "Title", "TableGrid", "ListParagraph"} {
		if !strings.Contains(styles, `w:styleId="`+id+`"`) {
			t.Fatalf("style %s missing", id)
		}
	}
	rels := readPart(t, data, "word/_rels/document.xml.rels")
	if !strings.Contains(rels, `Target="media/image1.png"`) {
		t.Fatalf("image relationship missing: %s", rels)
	}
	if readPart(t, data, "word/media/image1.png") == "" {
		t.Fatal("image part empty")
	}
	readPart(t, data, "[Content_Types].xml")
	readPart(t, data, "_rels/.rels")
}

func TestRenderLists(t *testing.T) {
	got := roundTrip(t, `<ul><li>一</li><li>二</li></ul><ol start="3"><li>三</li><li>四</li></ol>`)
	for _, w := range []string{"<p>• 一</p>", "<p>• 二</p>", "<p>3. 三</p>", "<p>4. 四</p>"} {
		if !strings.Contains(got, w) {
			t.Fatalf("missing %q in %s", w, got)
		}
	}
}

func TestRenderSkipsNonContent(t *testing.T) {
	got := roundTrip(t, `<html><head><title>t</title><style>p{color:red}</style></head>`+
		`<body><script>alert(1)</script><p>可见</p></body></html>`)
	if got != "<p>可见</p>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderEmptyInput(t *testing.T) {
	if got := roundTrip(t, ""); got != "" {
		t.Fatalf("expected empty document, got %q", got)
	}
}

func TestRenderRowspanShiftsLaterCells(t *testing.T) {
	src := `<table>` +
		`<tr><td rowspan="3">项目</td><td>x1</td><td>y1</td></tr>` +
		`<tr><td>x2</td><td>y2</td></tr>` +
		`<tr><td>x3</td><td>y3</td></tr>` +
		`</table>`
	data, err := render.Render(src)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := readPart(t, data, "word/document.xml")
	if n := strings.Count(doc, `<w:vMerge/>`); n != 2 {
		t.Fatalf("expected 2 continuation cells, got %d", n)
	}
	got := roundTrip(t, src)
	if !strings.Contains(got, `<td rowspan="3"><p>项目</p></td>`) || !strings.Contains(got, `<tr><td><p>x3</p></td><td><p>y3</p></td></tr>`) {
		t.Fatalf("unexpected table: %s", got)
	}
}

func TestRenderClampsSpans(t *testing.T) {
	data, err := render.Render(`<table><tr><td colspan="9223372036854775807">a</td><td>b</td></tr></table>`)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, `<w:gridSpan w:val="1000"/>`) {
		t.Fatalf("colspan not clamped: %s", doc[:min(len(doc), 400)])
	}
}
