package substitute

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

type fakeExec struct {
	mu      sync.Mutex
	results map[string]*datasource.ResultSet
	calls   map[string]int
}

func (f *fakeExec) Query(_ context.Context, _ store.DataSource, query string) (*datasource.ResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[query]++
	rs, ok := f.results[query]
	if !ok {
		return nil, errors.New("relation does not exist")
	}
	return rs, nil
}

func newEngine(t *testing.T) (*Engine, *fakeExec) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	require.NoError(t, repo.PutDataset(ctx, &store.Dataset{
		ID: "d1", Name: "审计数据", Type: store.DatasetList, SQLQuery: "SELECT audit",
		Fields: []string{"audit_name", "risk_level"},
	}))
	require.NoError(t, repo.PutDataset(ctx, &store.Dataset{
		ID: "d2", Name: "安全事件", Type: store.DatasetSingle, SQLQuery: "SELECT broken",
	}))
	require.NoError(t, repo.PutDataset(ctx, &store.Dataset{
		ID: "d3", Name: "空数据", Type: store.DatasetList, SQLQuery: "SELECT none", Fields: []string{"a"},
	}))
	exec := &fakeExec{results: map[string]*datasource.ResultSet{
		"SELECT audit": {
			Columns: []string{"audit_name", "risk_level"},
			Rows: []datasource.Row{
				{"audit_name": "A", "risk_level": "高"},
				{"audit_name": "B<x>"},
			},
		},
		"SELECT none":   {Columns: []string{"a"}},
		"SELECT count":  {Columns: []string{"n", "m"}, Rows: []datasource.Row{{"n": int64(42), "m": 1}}},
		"SELECT events": {Columns: []string{"id", "sev"}, Rows: []datasource.Row{{"id": "E1", "sev": "高"}}},
	}}
	e := New(repo, exec, nil)
	e.DefaultSource = &store.DataSource{ID: "default", Name: "default", Type: store.SourceSQLite, Database: "audit.db"}
	e.Now = func() time.Time { return time.Date(2024, 3, 31, 14, 5, 9, 0, time.UTC) }
	return e, exec
}

func TestListPlaceholderExpandsRows(t *testing.T) {
	e, _ := newEngine(t)
	src := `<p>前言</p><table><tr><th>序号</th>` +
		`<td><span class="dataset-placeholder-start" data-dataset-id="d1" data-display-fields="audit_name,risk_level">列表</span></td>` +
		`<td><span class="dataset-placeholder-field">f</span></td></tr>` +
		`<tr><td>1</td><td><span class="dataset-placeholder-data">d</span></td><td></td></tr></table><p>后记</p>`

	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	out := res.HTML
	assert.Contains(t, out, "<strong>audit_name</strong>")
	assert.Contains(t, out, "<strong>risk_level</strong>")
	assert.Contains(t, out, "<td>1</td><td>A</td><td>高</td>")
	assert.Contains(t, out, "<tr><td></td><td>B&lt;x&gt;</td><td>-</td></tr>")
	assert.Equal(t, 3, strings.Count(out, "<tr>"))
	assert.True(t, strings.HasPrefix(out, "<p>前言</p>"))
	assert.True(t, strings.HasSuffix(out, "<p>后记</p>"))
	assert.NotContains(t, out, "dataset-placeholder")
	assert.Empty(t, res.Errors)
}

func TestListPlaceholderWithNoRowsIsBlank(t *testing.T) {
	e, _ := newEngine(t)
	src := `<table><tr><td><span class="dataset-placeholder-start" data-dataset-id="d3">列表</span></td></tr>` +
		`<tr><td><span class="dataset-placeholder-data">d</span></td></tr></table>`

	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.NotContains(t, res.HTML, MsgNoData)
	assert.NotContains(t, res.HTML, "dataset-placeholder")
	assert.Equal(t, 2, strings.Count(res.HTML, "<td></td>"))
}

func TestListPlaceholderMissingDataset(t *testing.T) {
	e, _ := newEngine(t)
	src := `<table><tr><td><span class="dataset-placeholder-start" data-dataset-id="gone" data-dataset-name="旧数据集">x</span></td></tr></table>`
	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<span style="color: red;">数据集未找到: 旧数据集</span>`)
	assert.Len(t, res.Errors, 1)
}

func TestMissingSingleDatasetDoesNotStopOtherPlaceholders(t *testing.T) {
	e, _ := newEngine(t)
	src := `<div class="dataset-placeholder" data-dataset-id="nope" data-dataset-name="不存在的数据集" data-data-type="single" data-field-name="x">占位</div>` +
		`<p><span class="dynamic-field" data-field-type="FIXED" data-default-value="固定值">f</span>` +
		`<span class="dataset-placeholder-inline" data-dataset-id="d1" data-field-name="audit_name">i</span></p>`

	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, `<span style="color: red;">数据集未找到: 不存在的数据集</span><p>固定值A</p>`, res.HTML)
	assert.Len(t, res.Errors, 1)
}

func TestInlinePlaceholdersShareOneQuery(t *testing.T) {
	e, exec := newEngine(t)
	src := `<p><span class="dataset-placeholder-inline" data-dataset-id="d1" data-field-name="audit_name">a</span>/` +
		`<span class="dataset-placeholder-inline" data-dataset-id="d1" data-field-name="risk_level">b</span>/` +
		`<span class="dataset-placeholder-inline" data-dataset-id="d1" data-field-name="missing">c</span>/` +
		`<span class="dataset-placeholder-inline" data-dataset-id="zz" data-field-name="owner">d</span></p>`

	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, `<p>A/高/-/<span style="color: red;">[owner]</span></p>`, res.HTML)
	assert.Equal(t, 1, exec.calls["SELECT audit"])
}

func TestFailedQueryFallsBackToSampleData(t *testing.T) {
	e, _ := newEngine(t)
	src := `<span class="dataset-placeholder-inline" data-dataset-id="d2" data-field-name="incident_id">x</span>`

	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, "SEC-2024-001", res.HTML)
	assert.Equal(t, []string{"安全事件"}, res.Mocked)

	e.MockFallback = false
	res, err = e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, `<span style="color: red;">[错误]</span>`, res.HTML)
	assert.Empty(t, res.Mocked)
}

func TestDivPlaceholders(t *testing.T) {
	e, _ := newEngine(t)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"single", `<div class="dataset-placeholder" data-dataset-id="d1" data-data-type="single" data-field-name="risk_level"><div>nested</div></div>`, "高"},
		{"single missing field", `<div class="dataset-placeholder" data-dataset-id="d1" data-data-type="single" data-field-name="owner"></div>`, MsgNoData},
		{"list empty", `<div class="dataset-placeholder" data-dataset-id="d3" data-data-type="list" data-display-fields="a"></div>`, ""},
		{"bad config", `<div class="dataset-placeholder" data-dataset-id="d1" data-data-type="single"></div>`, MsgConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Substitute(context.Background(), tt.src, Vars{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.HTML)
		})
	}

	res, err := e.Substitute(context.Background(),
		`<div class="dataset-placeholder" data-dataset-name="审计数据" data-data-type="list" data-display-fields="audit_name"></div>`, Vars{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.HTML, "<table"))
	assert.Contains(t, res.HTML, ">B&lt;x&gt;</td>")
}

func TestDynamicFields(t *testing.T) {
	e, _ := newEngine(t)
	src := `<span class="dynamic-field" data-field-type="DATE" data-date-format="YYYY年MM月DD日">d</span>|` +
		`<span class="dynamic-field" data-field-type="SYSTEM" data-system-variable="CURRENT_USER">u</span>|` +
		`<span class="dynamic-field" data-field-type="SYSTEM" data-system-variable="DEPARTMENT">d</span>|` +
		`<span class="dynamic-field" data-field-type="SYSTEM" data-system-variable="REPORT_TIME">t</span>|` +
		`<span class="dynamic-field" data-field-type="DYNAMIC" data-source-id="pg">q</span>|` +
		`<span class="dynamic-field" data-field-type="DYNAMIC" data-source-id="pg" data-sql="SELECT count">q</span>|` +
		`<span class="dynamic-field" data-field-type="OTHER"><b>保留</b></span>`

	res, err := e.Substitute(context.Background(), src, Vars{Department: "审计部"})
	require.NoError(t, err)
	assert.Equal(t, "2024年03月31日|系统用户|审计部|2024-03-31 14:05:09|查询配置错误|42|<b>保留</b>", res.HTML)
}

func TestDynamicFieldQueryError(t *testing.T) {
	e, _ := newEngine(t)
	e.MockFallback = false
	src := `<span class="dynamic-field" data-field-type="DYNAMIC" data-source-id="pg" data-sql="SELECT nope">q</span>`
	res, err := e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, MsgQueryError, res.HTML)

	e.MockFallback = true
	res, err = e.Substitute(context.Background(), src, Vars{})
	require.NoError(t, err)
	assert.Equal(t, "1286", res.HTML)
	assert.Equal(t, []string{datasource.MockSourceName}, res.Mocked)
}

func TestDynamicTables(t *testing.T) {
	e, _ := newEngine(t)
	e.MockFallback = false

	res, err := e.Substitute(context.Background(),
		`<div class="dynamic-table" data-table-title="事件" data-source-id="pg" data-sql="SELECT events"><div>旧</div></div>`, Vars{})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, ">id</th>")
	assert.Contains(t, res.HTML, ">E1</td>")
	assert.NotContains(t, res.HTML, "旧")

	res, err = e.Substitute(context.Background(),
		`<div class="dynamic-table" data-source-id="pg" data-sql="SELECT none"></div>`, Vars{})
	require.NoError(t, err)
	assert.Equal(t, "", res.HTML)

	res, err = e.Substitute(context.Background(),
		`<div class="dynamic-table" data-table-title="失败表" data-source-id="pg" data-sql="SELECT broken"></div>`, Vars{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.HTML, "<div><h4>失败表</h4><p>表格数据加载失败: "))

	res, err = e.Substitute(context.Background(),
		`<div class="dynamic-table" data-dataset-name="审计数据" data-display-fields="risk_level"></div>`, Vars{})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, ">risk_level</th>")
	assert.Contains(t, res.HTML, ">高</td>")

	untouched := `<div class="dynamic-table" data-table-title="未配置"></div>`
	res, err = e.Substitute(context.Background(), untouched, Vars{})
	require.NoError(t, err)
	assert.Equal(t, untouched, res.HTML)
}

func TestSubstituteHonoursCancellation(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Substitute(ctx, "<p>x</p>", Vars{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatDate(t *testing.T) {
	now := time.Date(2024, 3, 31, 14, 5, 9, 0, time.UTC)
	tests := map[string]string{
		"":                    "2024-03-31",
		"YYYY-MM-DD":          "2024-03-31",
		"YYYY年MM月DD日":         "2024年03月31日",
		"YYYY年M月":             "2024年3月",
		"YYYY年":               "2024年",
		"M月":                  "3月",
		"PREV_MONTH":          "2月",
		"NEXT_MONTH":          "4月",
		"YYYY/MM/DD HH:mm:ss": "2024/03/31 14:05:09",
		"[第]D[日] A":           "第31日 下午",
	}
	for format, want := range tests {
		assert.Equal(t, want, FormatDate(now, format), format)
	}
	assert.Equal(t, "12月", FormatDate(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "PREV_MONTH"))
}

func TestCellData(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	repo := e.Repo
	require.NoError(t, repo.PutCellConfig(ctx, &store.CellConfig{TemplateID: "t1", CellID: "text", DisplayType: store.DisplayText, StaticText: "静态"}))
	require.NoError(t, repo.PutCellConfig(ctx, &store.CellConfig{TemplateID: "t1", CellID: "list", DatasetName: "审计数据"}))
	require.NoError(t, repo.PutCellConfig(ctx, &store.CellConfig{TemplateID: "t1", CellID: "single", DatasetType: store.DatasetSingle, SQLQuery: "SELECT audit", Fields: []string{"audit_name"}}))
	require.NoError(t, repo.PutCellConfig(ctx, &store.CellConfig{TemplateID: "t1", CellID: "broken", SQLQuery: "SELECT broken"}))
	e.MockFallback = false

	got, err := e.CellData(ctx, "t1", "text")
	require.NoError(t, err)
	assert.Equal(t, &CellData{Type: CellText, Content: "静态"}, got)

	got, err = e.CellData(ctx, "t1", "list")
	require.NoError(t, err)
	assert.Equal(t, CellList, got.Type)
	assert.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"audit_name", "risk_level"}, got.Fields)

	got, err = e.CellData(ctx, "t1", "single")
	require.NoError(t, err)
	assert.Equal(t, CellSingle, got.Type)
	assert.Equal(t, "A", got.Value["audit_name"])

	got, err = e.CellData(ctx, "t1", "broken")
	require.NoError(t, err)
	assert.Equal(t, CellError, got.Type)
	assert.NotEmpty(t, got.Message)

	_, err = e.CellData(ctx, "t1", "absent")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := e.TemplateData(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCellPlaceholderResolvesThroughConfig(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Repo.PutCellConfig(context.Background(), &store.CellConfig{TemplateID: "t9", CellID: "c1", DatasetName: "审计数据"}))
	src := `<span class="dataset-placeholder-inline" data-cell-id="c1" data-field-name="risk_level">x</span>`
	res, err := e.Substitute(context.Background(), src, Vars{TemplateID: "t9"})
	require.NoError(t, err)
	assert.Equal(t, "高", res.HTML)
}
