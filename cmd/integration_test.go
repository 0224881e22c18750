package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/docshape-cli/internal/parser"
	"github.com/KaramelBytes/docshape-cli/internal/render"
)

// resetFlags clears values and Changed state left over from earlier runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// isolate points HOME at a temp dir and drops any cached config.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg = nil
	t.Cleanup(func() { cfg = nil })
	return home
}

func TestCLI_ImportDocxAndInspect(t *testing.T) {
	home := isolate(t)
	runCmd(t, "init")

	docx, err := render.Render(`<h1>一、审计概述</h1><p>本次审计覆盖核心系统。</p>` +
		`<h1>二、风险明细</h1><table><tr><th>系统</th><th>风险</th></tr><tr><td>OA</td><td>高</td></tr></table>`)
	if err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	path := filepath.Join(home, "audit.docx")
	if err := os.WriteFile(path, docx, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out := runCmd(t, "import", path)
	if !strings.Contains(out, "Template imported: audit") {
		t.Fatalf("unexpected import output: %s", out)
	}
	if _, err := execCmd("import", path); err == nil {
		t.Fatalf("expected second import without --force to fail")
	}
	runCmd(t, "import", path, "--force", "--desc", "季度审计")

	if out := runCmd(t, "list"); !strings.Contains(out, "audit") {
		t.Fatalf("list missing template: %s", out)
	}

	var doc struct {
		Sections []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			HasTable bool   `json:"hasTable"`
		} `json:"sections"`
	}
	raw := runCmd(t, "sections", "audit", "--format", "json")
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode sections: %v\n%s", err, raw)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %s", len(doc.Sections), raw)
	}
	if !strings.Contains(doc.Sections[0].Title, "审计概述") || !doc.Sections[1].HasTable {
		t.Fatalf("unexpected sections: %+v", doc.Sections)
	}

	if out := runCmd(t, "reparse", "audit"); !strings.Contains(out, "2 sections") {
		t.Fatalf("unexpected reparse output: %s", out)
	}
	preview := runCmd(t, "preview", "audit", "--section", doc.Sections[1].ID)
	if !strings.Contains(preview, "风险明细") || !strings.Contains(preview, "| OA") {
		t.Fatalf("preview missing table: %s", preview)
	}
}

func TestCLI_DatasetExportFromSQLite(t *testing.T) {
	home := isolate(t)
	runCmd(t, "init")

	dbPath := filepath.Join(home, "events.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE incidents (incident_id TEXT, title TEXT)`,
		`INSERT INTO incidents VALUES ('INC-7', '口令泄露'), ('INC-8', '越权访问')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	_ = db.Close()

	runCmd(t, "datasource", "add", "--id", "local", "--name", "local", "--type", "sqlite", "--database", dbPath)
	if out := runCmd(t, "datasource", "test", "local"); !strings.Contains(out, "Connected") {
		t.Fatalf("unexpected test output: %s", out)
	}
	runCmd(t, "dataset", "add", "--name", "incidents", "--type", "list",
		"--sql", "SELECT incident_id, title FROM incidents ORDER BY incident_id",
		"--fields", "incident_id,title", "--source", "local")
	if out := runCmd(t, "dataset", "run", "incidents"); !strings.Contains(out, "INC-8") {
		t.Fatalf("dataset run missing rows: %s", out)
	}

	src := filepath.Join(home, "report.html")
	page := `<html><body><h1>一、事件</h1>` +
		`<p>首个事件：<span class="dataset-placeholder-inline" data-dataset-name="incidents" data-field-name="incident_id">x</span></p>` +
		`<h1>二、负责人</h1><p>负责人：<span class="dataset-placeholder-inline" data-cell-id="owner" data-field-name="name">y</span></p>` +
		`</body></html>`
	if err := os.WriteFile(src, []byte(page), 0o644); err != nil {
		t.Fatalf("write html: %v", err)
	}
	runCmd(t, "import", src, "--name", "report")
	runCmd(t, "cell", "set", "report", "list-cell", "--dataset", "incidents")
	if out := runCmd(t, "cell", "list", "report"); !strings.Contains(out, "list-cell") {
		t.Fatalf("cell list missing entry: %s", out)
	}

	var data map[string]struct {
		Type string           `json:"type"`
		Rows []map[string]any `json:"rows"`
	}
	raw := runCmd(t, "cell", "data", "report")
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("decode cell data: %v\n%s", err, raw)
	}
	if got := data["list-cell"]; got.Type != "list" || len(got.Rows) != 2 {
		t.Fatalf("unexpected cell data: %s", raw)
	}

	outDocx := filepath.Join(home, "out", "report.docx")
	outHTML := filepath.Join(home, "report.filled.html")
	runCmd(t, "export", "report", "-o", outDocx, "--html-out", outHTML, "--no-mock")

	filled, err := os.ReadFile(outHTML)
	if err != nil {
		t.Fatalf("read html output: %v", err)
	}
	if !strings.Contains(string(filled), "INC-7") {
		t.Fatalf("placeholder not filled: %s", filled)
	}
	conv, err := parser.ConvertFile(outDocx)
	if err != nil {
		t.Fatalf("exported docx unreadable: %v", err)
	}
	if !strings.Contains(conv.HTML, "INC-7") {
		t.Fatalf("docx missing filled value: %s", conv.HTML)
	}

	runCmd(t, "cell", "rm", "report", "list-cell")
	runCmd(t, "dataset", "rm", "incidents")
	if out := runCmd(t, "dataset", "list"); !strings.Contains(out, "no datasets") {
		t.Fatalf("dataset not removed: %s", out)
	}
}

func TestCLI_RenderAndConfig(t *testing.T) {
	home := isolate(t)
	runCmd(t, "init")

	in := filepath.Join(home, "page.html")
	if err := os.WriteFile(in, []byte(`<h2>标题</h2><p>正文</p>`), 0o644); err != nil {
		t.Fatalf("write html: %v", err)
	}
	out := filepath.Join(home, "page.docx")
	runCmd(t, "render", in, "-o", out)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read docx: %v", err)
	}
	if err := parser.CheckMagic(data); err != nil {
		t.Fatalf("render output is not a docx: %v", err)
	}

	runCmd(t, "config", "set", "batch_size", "8")
	runCmd(t, "config", "set", "default_source_password", "s3cretpass")
	cfg = nil
	shown := runCmd(t, "config", "show")
	if !strings.Contains(shown, "batch_size: 8") {
		t.Fatalf("batch_size not persisted: %s", shown)
	}
	if strings.Contains(shown, "s3cretpass") {
		t.Fatalf("password not masked: %s", shown)
	}
	if _, err := execCmd("config", "set", "batch_size", "zero"); err == nil {
		t.Fatalf("expected invalid int to be rejected")
	}
	if _, err := execCmd("config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestCLI_ColumnConfigAndReport(t *testing.T) {
	home := isolate(t)
	runCmd(t, "init")

	dbPath := filepath.Join(home, "risks.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE risks (high INTEGER, low INTEGER)`,
		`INSERT INTO risks VALUES (3, 9)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	_ = db.Close()
	runCmd(t, "datasource", "add", "--id", "local", "--name", "local", "--type", "sqlite", "--database", dbPath)

	docx, err := render.Render(`<h1>一、风险统计</h1><table><tr><th rowspan="2">系统</th><th colspan="2">风险</th></tr>` +
		`<tr><th>high</th><th>low</th></tr><tr><td>OA</td><td>1</td><td>2</td></tr></table>` +
		`<h1>二、结论</h1><p>待补充</p>`)
	if err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	path := filepath.Join(home, "risk.docx")
	if err := os.WriteFile(path, docx, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	runCmd(t, "import", path)

	var doc struct {
		Sections []struct {
			ID       string `json:"id"`
			HasTable bool   `json:"hasTable"`
		} `json:"sections"`
	}
	raw := runCmd(t, "sections", "risk", "--format", "json")
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode sections: %v\n%s", err, raw)
	}
	if len(doc.Sections) != 2 || !doc.Sections[0].HasTable {
		t.Fatalf("unexpected sections: %s", raw)
	}
	table, text := doc.Sections[0].ID, doc.Sections[1].ID

	runCmd(t, "column", "set", "risk", table, "0", "--type", "fixed", "--value", "统一平台")
	runCmd(t, "column", "set", "risk", table, "1", "--type", "DYNAMIC", "--sql", "SELECT high, low FROM risks", "--source", "local")
	runCmd(t, "column", "set", "risk", table, "2", "--type", "DYNAMIC", "--sql", "SELECT high, low FROM risks", "--source", "local")
	runCmd(t, "column", "set", "risk", text, "0", "--type", "MANUAL")
	if _, err := execCmd("column", "set", "risk", table, "3", "--type", "FIXED"); err == nil {
		t.Fatalf("expected out-of-range column to be rejected")
	}
	if _, err := execCmd("column", "set", "risk", table, "0", "--type", "AUTO"); err == nil {
		t.Fatalf("expected unknown data type to be rejected")
	}
	if out := runCmd(t, "column", "list", "risk"); !strings.Contains(out, "风险 / high") {
		t.Fatalf("column list missing grouped header: %s", out)
	}

	outDocx := filepath.Join(home, "out", "risk-report.docx")
	outHTML := filepath.Join(home, "risk-report.html")
	runCmd(t, "report", "risk", "-o", outDocx, "--html-out", outHTML, "--no-mock")
	filled, err := os.ReadFile(outHTML)
	if err != nil {
		t.Fatalf("read report html: %v", err)
	}
	for _, want := range []string{`colspan="2"`, "统一平台", ">3<", ">9<", "(待填写)"} {
		if !strings.Contains(string(filled), want) {
			t.Fatalf("report missing %q: %s", want, filled)
		}
	}
	if _, err := parser.ConvertFile(outDocx); err != nil {
		t.Fatalf("report docx unreadable: %v", err)
	}

	runCmd(t, "column", "rm", "risk", text, "0")
	if _, err := execCmd("column", "rm", "risk", text, "0"); err == nil {
		t.Fatalf("expected second removal to fail")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b,,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("splitList: %v", got)
	}
	if splitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
