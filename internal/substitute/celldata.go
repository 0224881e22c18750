package substitute

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// Cell data kinds.
const (
	CellText   = "text"
	CellSingle = "single"
	CellList   = "list"
	CellError  = "error"
)

// CellData is the resolved content of one configured cell.
type CellData struct {
	Type    string           `json:"type" yaml:"type"`
	Content string           `json:"content,omitempty" yaml:"content,omitempty"`
	Fields  []string         `json:"fields,omitempty" yaml:"fields,omitempty"`
	Value   datasource.Row   `json:"value,omitempty" yaml:"value,omitempty"`
	Rows    []datasource.Row `json:"rows,omitempty" yaml:"rows,omitempty"`
	Mocked  bool             `json:"mocked,omitempty" yaml:"mocked,omitempty"`
	Message string           `json:"message,omitempty" yaml:"message,omitempty"`
}

// CellData resolves the configuration stored for one template cell. Query
// failures are reported in-band as an error kind; a missing configuration
// returns store.ErrNotFound.
func (e *Engine) CellData(ctx context.Context, templateID, cellID string) (*CellData, error) {
	if e.Repo == nil {
		return nil, fmt.Errorf("cell %s/%s: %w", templateID, cellID, store.ErrNotFound)
	}
	cfg, err := e.Repo.GetCellConfig(ctx, store.CellKey{TemplateID: templateID, CellID: cellID})
	if err != nil {
		return nil, err
	}
	return e.cellData(ctx, cfg), nil
}

// TemplateData resolves every configured cell of a template keyed by cell id.
func (e *Engine) TemplateData(ctx context.Context, templateID string) (map[string]*CellData, error) {
	cfgs, err := e.Repo.ListCellConfigs(ctx, templateID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*CellData, len(cfgs))
	for i := range cfgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[cfgs[i].CellID] = e.cellData(ctx, &cfgs[i])
	}
	return out, nil
}

func (e *Engine) cellData(ctx context.Context, cfg *store.CellConfig) *CellData {
	if cfg.DisplayType == store.DisplayText {
		return &CellData{Type: CellText, Content: cfg.StaticText}
	}
	d, err := datasetForCell(ctx, e.Repo, cfg)
	if err != nil {
		return &CellData{Type: CellError, Message: err.Error()}
	}
	if d == nil {
		return &CellData{Type: CellError, Message: MsgDatasetMissing + ": " + cfg.DatasetName}
	}
	p := &pass{engine: e, res: &Result{}, cache: map[string]*answer{}}
	rs, err := p.query(ctx, d)
	if err != nil {
		return &CellData{Type: CellError, Message: err.Error()}
	}
	mocked := len(p.res.Mocked) > 0
	if d.Type == store.DatasetSingle {
		first := rs.First()
		if first == nil {
			first = datasource.Row{}
		}
		return &CellData{Type: CellSingle, Fields: d.Fields, Value: first, Mocked: mocked}
	}
	return &CellData{Type: CellList, Fields: d.Fields, Rows: rs.Rows, Mocked: mocked}
}
