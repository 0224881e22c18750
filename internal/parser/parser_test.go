package parser_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/docshape-cli/internal/parser"
)

const ns = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"`

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func sampleDocx(t *testing.T) []byte {
	body := `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>概述</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="a3"/><w:jc w:val="center"/></w:pPr><w:r><w:t>细节</w:t></w:r></w:p>` +
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>粗</w:t></w:r><w:r><w:rPr><w:i/></w:rPr><w:t>斜</w:t></w:r>` +
		`<w:r><w:rPr><w:u w:val="single"/></w:rPr><w:t>线</w:t></w:r><w:r><w:rPr><w:strike/></w:rPr><w:t>删</w:t></w:r>` +
		`<w:r><w:rPr><w:vertAlign w:val="superscript"/></w:rPr><w:t>2</w:t></w:r><w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t xml:space="preserve"> &amp; x</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>前</w:t></w:r><w:r><w:br w:type="page"/></w:r><w:r><w:t>后</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>一</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>二</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>合并</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>纵</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:drawing><wp:inline><wp:docPr id="1" name="p" descr="图"/><a:graphic><a:graphicData><pic:pic>` +
		`<pic:blipFill><a:blip r:embed="rId5"/></pic:blipFill></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>` +
		`<w:p><w:r><w:pict/><w:t>文字</w:t></w:r></w:p>` +
		`<w:sectPr/>`
	return buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   `<?xml version="1.0" encoding="UTF-8"?><w:document ` + ns + `><w:body>` + body + `</w:body></w:document>`,
		"word/styles.xml": `<?xml version="1.0"?><w:styles ` + ns + `>` +
			`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
			`<w:style w:type="paragraph" w:styleId="a3"><w:name w:val="标题 2"/></w:style></w:styles>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/></Relationships>`,
		"word/media/image1.png": string(pngBytes),
	})
}

func TestConvertFileDocx(t *testing.T) {
	p := writeFile(t, "report.docx", sampleDocx(t))
	out, err := parser.ConvertFile(p)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := []string{
		`<h1>概述</h1>`,
		`<h2 style="text-align: center">细节</h2>`,
		`<p><strong>粗</strong><em>斜</em><u>线</u><del>删</del><sup>2</sup> &amp; x</p>`,
		`<p>前</p><div class="page-break"></div><p>后</p>`,
		`<ul><li>一</li><li>二</li></ul>`,
		`<table><tr><td colspan="2"><p>合并</p></td><td rowspan="2"><p>纵</p></td></tr><tr><td><p>a</p></td><td><p>b</p></td></tr></table>`,
		`<img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngBytes) + `" alt="图">`,
		`<p>文字</p>`,
	}
	last := -1
	for _, w := range want {
		i := strings.Index(out.HTML, w)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", w, out.HTML)
		}
		if i < last {
			t.Fatalf("%q out of order", w)
		}
		last = i
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "VML") {
		t.Fatalf("expected one VML warning, got %v", out.Warnings)
	}
}

func TestCheckMagic(t *testing.T) {
	cases := []struct {
		head []byte
		want error
	}{
		{[]byte("PK\x03\x04"), nil},
		{[]byte{0xD0, 0xCF, 0x11, 0xE0}, parser.ErrLegacyFormat},
		{[]byte("<html>"), parser.ErrNotDocx},
		{[]byte("P"), parser.ErrNotDocx},
		{nil, parser.ErrNotDocx},
	}
	for _, c := range cases {
		if got := parser.CheckMagic(c.head); got != c.want {
			t.Errorf("CheckMagic(%q)=%v want %v", c.head, got, c.want)
		}
	}
}

func TestConvertFileInputErrors(t *testing.T) {
	noDoc := buildDocx(t, map[string]string{"word/other.xml": "<x/>"})
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"legacy.docx", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, parser.ErrLegacyFormat},
		{"legacy.doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, parser.ErrLegacyFormat},
		{"plain.docx", []byte("just text"), parser.ErrNotDocx},
		{"broken.docx", []byte("PK\x03\x04garbage"), parser.ErrCorrupt},
		{"nodoc.docx", noDoc, parser.ErrCorrupt},
		{"notes.txt", []byte("hello"), parser.ErrUnsupported},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := writeFile(t, c.name, c.data)
			_, err := parser.ConvertFile(p)
			if !errors.Is(err, c.want) {
				t.Fatalf("want %v, got %v", c.want, err)
			}
			var fe *parser.FormatError
			if !errors.As(err, &fe) || fe.Path != p {
				t.Fatalf("expected FormatError for %s, got %#v", p, err)
			}
			if parser.Hint(err) == "" {
				t.Fatalf("expected a hint for %v", err)
			}
		})
	}
}

func TestConvertFileSniffsZipWithoutExtension(t *testing.T) {
	p := writeFile(t, "upload.bin", sampleDocx(t))
	out, err := parser.ConvertFile(p)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out.HTML, "<h1>概述</h1>") {
		t.Fatalf("unexpected html: %s", out.HTML)
	}
}

func TestConvertFileHTML(t *testing.T) {
	p := writeFile(t, "edited.html", []byte("<html><head><title>x</title></head><body>\n<h2>标题</h2><p>正文</p>\n</body></html>"))
	out, err := parser.ConvertFile(p)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out.HTML != "<h2>标题</h2><p>正文</p>" {
		t.Fatalf("unexpected html: %q", out.HTML)
	}
}

func TestConvertClampsGridSpan(t *testing.T) {
	body := `<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="5000000"/></w:tcPr><w:p><w:r><w:t>宽</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	data := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   `<?xml version="1.0" encoding="UTF-8"?><w:document ` + ns + `><w:body>` + body + `</w:body></w:document>`,
	})
	out, err := parser.Convert(data)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out.HTML, `colspan="1000"`) {
		t.Fatalf("gridSpan not clamped: %s", out.HTML)
	}
}
