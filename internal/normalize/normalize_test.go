package normalize

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeStripsVendorArtifacts(t *testing.T) {
	raw := `<p class="MsoNormal" style="mso-line-height:150%;font-size:12pt;color:red;font-family:Arial">正文<o:p></o:p></p>` +
		`<!--[if gte mso 9]><xml><w:WordDocument></w:WordDocument></xml><![endif]-->` +
		`<p><![if !supportLists]>1.<![endif]>列表</p>`
	out := New(Options{}).Normalize(raw)
	for _, bad := range []string{"<o:p>", "mso-", "font-family", "supportLists", "WordDocument", "<xml"} {
		if strings.Contains(out, bad) {
			t.Fatalf("output still contains %q: %s", bad, out)
		}
	}
	if !strings.Contains(out, "font-size: 12pt") || !strings.Contains(out, "color: red") {
		t.Fatalf("allowed styles dropped: %s", out)
	}
	if !strings.Contains(out, `class="MsoNormal"`) {
		t.Fatalf("class attribute should survive: %s", out)
	}
}

func TestNormalizeKeepsStructure(t *testing.T) {
	raw := `<h2>标题</h2><table><tr><td colspan="2" rowspan="x">a</td></tr></table>` +
		`<div class="page-break"></div><img src="data:image/png;base64,iVBORw0KGgo=" alt="p">` +
		`<span class="dataset-placeholder-inline" data-dataset-id="d1">x</span><script>alert(1)</script>`
	out := New(Options{}).Normalize(raw)
	for _, want := range []string{"<h2>标题</h2>", `colspan="2"`, `class="page-break"`, "data:image/png;base64", `data-dataset-id="d1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
	if strings.Contains(out, "rowspan") || strings.Contains(out, "script") {
		t.Fatalf("invalid rowspan or script kept: %s", out)
	}
}

func TestNormalizeInjectsFontStack(t *testing.T) {
	out := Normalize(`<p>x</p>`)
	if !strings.HasPrefix(out, FontStyleBlock) {
		t.Fatalf("font style block not injected")
	}
	if again := Normalize(out); again != out {
		t.Fatalf("normalize should be idempotent:\n%s\n---\n%s", out, again)
	}
}

func TestFilterStylesDropsEmptyAttribute(t *testing.T) {
	out, _ := filterStyles(`<p style='mso-bidi-font-size:10pt; font-family:宋体'>x</p><td style="TEXT-ALIGN:center">`)
	if out != `<p>x</p><td style="text-align: center">` {
		t.Fatalf("got %s", out)
	}
}

func TestNormalizeReturnsPartialOnStepFailure(t *testing.T) {
	n := New(Options{})
	n.steps = append(n.steps[:1], step{"boom", func(string) (string, error) { return "", errors.New("boom") }}, n.steps[1])
	out := n.Normalize(`<p>a<o:p></o:p></p>`)
	if out != `<p>a</p>` {
		t.Fatalf("expected result of first step only, got %q", out)
	}

	n = New(Options{})
	n.steps = []step{{"panics", func(string) (string, error) { panic("bad input") }}}
	if out := n.Normalize("keep"); out != "keep" {
		t.Fatalf("panicking step should leave input intact, got %q", out)
	}
}
