// Package substitute replaces dataset placeholders and dynamic fields in
// template HTML with live or sample data.
package substitute

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// Defaults for system variables when Vars leaves them empty.
const (
	DefaultUser          = "系统用户"
	DefaultDepartment    = "信息安全室"
	DefaultSystemVersion = "v1.0.0"
)

// Marker texts written into the document when a placeholder cannot be
// resolved.
const (
	MsgDatasetMissing = "数据集未找到"
	MsgInlineError    = "[错误]"
	MsgNoData         = "无数据"
	MsgConfigError    = "配置错误"
	MsgQueryConfig    = "查询配置错误"
	MsgQueryError     = "查询错误"
	MsgProcessError   = "数据处理错误"
	MsgTableFailed    = "表格数据加载失败"
	MissingValue      = "-"
)

// ErrNoDataSource is returned when neither the dataset nor the engine names a
// data source.
var ErrNoDataSource = errors.New("no data source configured")

// Vars carries the request-scoped values for system variables.
type Vars struct {
	CurrentUser   string
	Department    string
	SystemVersion string
	TemplateID    string
}

func (v Vars) user() string {
	if v.CurrentUser != "" {
		return v.CurrentUser
	}
	return DefaultUser
}

func (v Vars) department() string {
	if v.Department != "" {
		return v.Department
	}
	return DefaultDepartment
}

func (v Vars) version() string {
	if v.SystemVersion != "" {
		return v.SystemVersion
	}
	return DefaultSystemVersion
}

// Result is the substituted document plus provenance notes.
type Result struct {
	HTML string
	// Mocked lists datasets answered from sample data.
	Mocked []string
	// Errors lists placeholder-level failures rendered as markers.
	Errors []string
}

// Engine resolves placeholders against a repository and an executor.
type Engine struct {
	Repo          store.Repository
	Executor      datasource.Executor
	DefaultSource *store.DataSource
	MockFallback  bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// New returns an engine with mock fallback enabled.
func New(repo store.Repository, exec datasource.Executor, logger *slog.Logger) *Engine {
	return &Engine{Repo: repo, Executor: exec, MockFallback: true, Logger: logger}
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Substitute runs every pass over src in order. Placeholder failures are
// written into the document as markers; an error is returned only when ctx
// ends.
func (e *Engine) Substitute(ctx context.Context, src string, vars Vars) (*Result, error) {
	res := &Result{}
	passes := []struct {
		name string
		fn   func(*pass, context.Context, string) string
	}{
		{"list", (*pass).lists},
		{"inline", (*pass).inlines},
		{"div", (*pass).divs},
		{"dynamic-field", (*pass).dynamicFields},
		{"dynamic-table", (*pass).dynamicTables},
	}
	out := src
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("substitute %s pass: %w", p.name, err)
		}
		ps := &pass{engine: e, vars: vars, res: res, cache: map[string]*answer{}}
		out = p.fn(ps, ctx, out)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("substitute: %w", err)
	}
	res.HTML = out
	e.log().Debug("substitution finished", "mocked", len(res.Mocked), "errors", len(res.Errors))
	return res, nil
}

// answer is a dataset query outcome shared by placeholders within a pass.
type answer struct {
	rows *datasource.ResultSet
	err  error
}

type pass struct {
	engine *Engine
	vars   Vars
	res    *Result
	cache  map[string]*answer
}

func (p *pass) fail(kind, detail string) {
	p.res.Errors = append(p.res.Errors, kind+": "+detail)
}

func (p *pass) mocked(name string) {
	for _, n := range p.res.Mocked {
		if n == name {
			return
		}
	}
	p.res.Mocked = append(p.res.Mocked, name)
}

// ref names a dataset the way placeholders do.
type ref struct {
	ID     string
	Name   string
	CellID string
}

func refFromAttrs(attrs map[string]string) ref {
	return ref{ID: attrs["data-dataset-id"], Name: attrs["data-dataset-name"], CellID: attrs["data-cell-id"]}
}

func (r ref) key() string {
	switch {
	case r.ID != "":
		return "id:" + r.ID
	case r.Name != "":
		return "name:" + r.Name
	default:
		return "cell:" + r.CellID
	}
}

func (r ref) label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.ID != "":
		return r.ID
	default:
		return r.CellID
	}
}

func (r ref) empty() bool { return r.ID == "" && r.Name == "" && r.CellID == "" }

// resolve finds the dataset a placeholder refers to. A nil dataset with a nil
// error means the reference does not exist.
func (p *pass) resolve(ctx context.Context, r ref) (*store.Dataset, error) {
	repo := p.engine.Repo
	if repo == nil {
		return nil, nil
	}
	var (
		d   *store.Dataset
		err error
	)
	switch {
	case r.ID != "":
		d, err = repo.GetDataset(ctx, r.ID)
		if errors.Is(err, store.ErrNotFound) && r.Name != "" {
			d, err = repo.FindDatasetByName(ctx, r.Name)
		}
	case r.Name != "":
		d, err = repo.FindDatasetByName(ctx, r.Name)
	case r.CellID != "" && p.vars.TemplateID != "":
		return p.cellDataset(ctx, store.CellKey{TemplateID: p.vars.TemplateID, CellID: r.CellID})
	default:
		return nil, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// cellDataset builds an ad-hoc dataset from a persisted cell configuration.
func (p *pass) cellDataset(ctx context.Context, key store.CellKey) (*store.Dataset, error) {
	cfg, err := p.engine.Repo.GetCellConfig(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return datasetForCell(ctx, p.engine.Repo, cfg)
}

func datasetForCell(ctx context.Context, repo store.Repository, cfg *store.CellConfig) (*store.Dataset, error) {
	d := &store.Dataset{
		ID:           cfg.Key().String(),
		Name:         cfg.DatasetName,
		Type:         cfg.DatasetType,
		SQLQuery:     cfg.SQLQuery,
		Fields:       cfg.Fields,
		DataSourceID: cfg.DataSourceID,
	}
	if cfg.DatasetName != "" && cfg.SQLQuery == "" {
		named, err := repo.FindDatasetByName(ctx, cfg.DatasetName)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		d.SQLQuery = named.SQLQuery
		d.DataSourceID = named.DataSourceID
		if len(d.Fields) == 0 {
			d.Fields = named.Fields
		}
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	return d, nil
}

// query runs a dataset once per pass, falling back to sample data when the
// live path fails.
func (p *pass) query(ctx context.Context, d *store.Dataset) (*datasource.ResultSet, error) {
	key := d.ID + "\x00" + d.Name
	if a, ok := p.cache[key]; ok {
		return a.rows, a.err
	}
	rows, err := p.engine.run(ctx, d.DataSourceID, d.SQLQuery, d.Name)
	if err != nil {
		if mock, ok := p.fallback(d.Name, err); ok {
			rows, err = mock, nil
		}
	}
	if err == nil && rows == nil {
		rows = &datasource.ResultSet{}
	}
	if err == nil && d.Type == store.DatasetSingle && len(rows.Rows) > 1 {
		rows = &datasource.ResultSet{Columns: rows.Columns, Rows: rows.Rows[:1]}
	}
	p.cache[key] = &answer{rows: rows, err: err}
	return rows, err
}

// fallback returns the sample rows for name when mock fallback is on.
func (p *pass) fallback(name string, cause error) (*datasource.ResultSet, bool) {
	if !p.engine.MockFallback {
		return nil, false
	}
	mock, ok := datasource.MockRows(name)
	if !ok {
		return nil, false
	}
	p.engine.log().Warn("query failed, using sample data", "dataset", name, "err", cause)
	p.mocked(name)
	return mock, true
}

func (e *Engine) source(ctx context.Context, id string) (store.DataSource, error) {
	if id != "" && e.Repo != nil {
		src, err := e.Repo.GetDataSource(ctx, id)
		if err == nil {
			return *src, nil
		}
		if !errors.Is(err, store.ErrNotFound) || e.DefaultSource == nil {
			return store.DataSource{}, err
		}
	}
	if e.DefaultSource == nil {
		return store.DataSource{}, ErrNoDataSource
	}
	return *e.DefaultSource, nil
}

func (e *Engine) run(ctx context.Context, sourceID, query, label string) (*datasource.ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("dataset %q has no query", label)
	}
	if e.Executor == nil {
		return nil, errors.New("no query executor")
	}
	src, err := e.source(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return e.Executor.Query(ctx, src, query)
}

// value formats row[field], using MissingValue for absent or empty values.
func value(row datasource.Row, field string) string {
	v, ok := row[field]
	if !ok || v == nil {
		return MissingValue
	}
	s := datasource.Format(v)
	if s == "" {
		return MissingValue
	}
	return s
}

func marker(text string) string {
	return `<span style="color: red;">` + html.EscapeString(text) + `</span>`
}

func missingMarker(name string) string {
	return marker(MsgDatasetMissing + ": " + name)
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

const (
	miniTableStyle = `border-collapse: collapse; border: 1px solid #ddd; width: 100%;`
	miniHeadStyle  = `border: 1px solid #ddd; padding: 8px; background: #f5f5f5; text-align: left;`
	miniCellStyle  = `border: 1px solid #ddd; padding: 8px;`
)

// miniTable renders rows restricted to fields; zero rows render as "".
func miniTable(rows []datasource.Row, fields []string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<table style="` + miniTableStyle + `"><tr>`)
	for _, f := range fields {
		b.WriteString(`<th style="` + miniHeadStyle + `">` + html.EscapeString(f) + `</th>`)
	}
	b.WriteString(`</tr>`)
	for _, r := range rows {
		b.WriteString(`<tr>`)
		for _, f := range fields {
			b.WriteString(`<td style="` + miniCellStyle + `">` + html.EscapeString(value(r, f)) + `</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table>`)
	return b.String()
}
