// Package store persists datasets, per-cell configuration and data source
// definitions behind small repository interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a record that cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Dataset cardinalities.
const (
	DatasetSingle = "single"
	DatasetList   = "list"
)

// Cell display types.
const (
	DisplayText    = "text"
	DisplayDataset = "dataset"
)

// Data source types.
const (
	SourcePostgres = "postgresql"
	SourceSQLite   = "sqlite"
)

// Dataset is a named, reusable query definition.
type Dataset struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description" yaml:"description"`
	Type         string    `json:"type" yaml:"type"`
	SQLQuery     string    `json:"sqlQuery" yaml:"sqlQuery"`
	Fields       []string  `json:"fields" yaml:"fields"`
	DataSourceID string    `json:"dataSourceId" yaml:"dataSourceId"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Validate checks the required dataset fields.
func (d *Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if d.Type != DatasetSingle && d.Type != DatasetList {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q or %q", DatasetSingle, DatasetList)}
	}
	return nil
}

// CellKey addresses one configured cell of one template.
type CellKey struct {
	TemplateID string
	CellID     string
}

func (k CellKey) String() string { return k.TemplateID + "_" + k.CellID }

// CellConfig is the user's data binding for a template cell.
type CellConfig struct {
	TemplateID   string    `json:"templateId" yaml:"templateId"`
	CellID       string    `json:"cellId" yaml:"cellId"`
	DatasetName  string    `json:"datasetName" yaml:"datasetName"`
	DatasetType  string    `json:"datasetType" yaml:"datasetType"`
	DisplayType  string    `json:"displayType" yaml:"displayType"`
	Fields       []string  `json:"fields" yaml:"fields"`
	SQLQuery     string    `json:"sqlQuery" yaml:"sqlQuery"`
	DataSourceID string    `json:"dataSourceId" yaml:"dataSourceId"`
	StaticText   string    `json:"staticText" yaml:"staticText"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Key returns the config's typed key.
func (c *CellConfig) Key() CellKey { return CellKey{TemplateID: c.TemplateID, CellID: c.CellID} }

// ApplyDefaults fills the documented defaults for unset types.
func (c *CellConfig) ApplyDefaults() {
	if c.DatasetType == "" {
		c.DatasetType = DatasetList
	}
	if c.DisplayType == "" {
		c.DisplayType = DisplayDataset
	}
}

// Validate checks the required cell config fields.
func (c *CellConfig) Validate() error {
	if strings.TrimSpace(c.TemplateID) == "" {
		return &ValidationError{Field: "templateId", Reason: "required"}
	}
	if strings.TrimSpace(c.CellID) == "" {
		return &ValidationError{Field: "cellId", Reason: "required"}
	}
	if c.DatasetType != DatasetSingle && c.DatasetType != DatasetList {
		return &ValidationError{Field: "datasetType", Reason: "must be single or list"}
	}
	if c.DisplayType != DisplayText && c.DisplayType != DisplayDataset {
		return &ValidationError{Field: "displayType", Reason: "must be text or dataset"}
	}
	return nil
}

// ColumnKey addresses one table column of one template section.
type ColumnKey struct {
	TemplateID string
	SectionID  string
	Index      int
}

func (k ColumnKey) String() string { return fmt.Sprintf("%s_%s_%d", k.TemplateID, k.SectionID, k.Index) }

// ColumnConfig fills one column of a section report. DataType is one of
// analysis.DataFixed, analysis.DataManual or analysis.DataDynamic; dynamic
// columns read their values from SQLQuery. Text sections use index 0.
type ColumnConfig struct {
	TemplateID   string    `json:"templateId" yaml:"templateId"`
	SectionID    string    `json:"sectionId" yaml:"sectionId"`
	Index        int       `json:"index" yaml:"index"`
	DataType     string    `json:"dataType" yaml:"dataType"`
	Value        string    `json:"value" yaml:"value"`
	SQLQuery     string    `json:"sqlQuery" yaml:"sqlQuery"`
	DataSourceID string    `json:"dataSourceId" yaml:"dataSourceId"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Key returns the config's typed key.
func (c *ColumnConfig) Key() ColumnKey {
	return ColumnKey{TemplateID: c.TemplateID, SectionID: c.SectionID, Index: c.Index}
}

// Validate checks the key and the data type.
func (c *ColumnConfig) Validate() error {
	if strings.TrimSpace(c.TemplateID) == "" {
		return &ValidationError{Field: "templateId", Reason: "required"}
	}
	if strings.TrimSpace(c.SectionID) == "" {
		return &ValidationError{Field: "sectionId", Reason: "required"}
	}
	if c.Index < 0 {
		return &ValidationError{Field: "index", Reason: "must not be negative"}
	}
	switch c.DataType {
	case analysis.DataFixed, analysis.DataManual:
	case analysis.DataDynamic:
		if strings.TrimSpace(c.SQLQuery) == "" {
			return &ValidationError{Field: "sqlQuery", Reason: "required for DYNAMIC columns"}
		}
	default:
		return &ValidationError{Field: "dataType", Reason: "must be FIXED, MANUAL or DYNAMIC"}
	}
	return nil
}

// DataSource holds connection parameters for a relational source.
type DataSource struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Type      string    `json:"type" yaml:"type"`
	Host      string    `json:"host" yaml:"host"`
	Port      int       `json:"port" yaml:"port"`
	Database  string    `json:"database" yaml:"database"`
	Username  string    `json:"username" yaml:"username"`
	Password  string    `json:"-" yaml:"-"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Validate checks the required data source fields.
func (s *DataSource) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	switch strings.ToLower(s.Type) {
	case SourcePostgres, "postgres":
		if s.Database == "" {
			return &ValidationError{Field: "database", Reason: "required"}
		}
	case SourceSQLite:
		if s.Database == "" {
			return &ValidationError{Field: "database", Reason: "path required"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported type %q", s.Type)}
	}
	return nil
}

// DatasetRepository stores datasets.
type DatasetRepository interface {
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	FindDatasetByName(ctx context.Context, name string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	PutDataset(ctx context.Context, d *Dataset) error
	DeleteDataset(ctx context.Context, id string) error
}

// CellConfigRepository stores per-cell configuration.
type CellConfigRepository interface {
	GetCellConfig(ctx context.Context, key CellKey) (*CellConfig, error)
	PutCellConfig(ctx context.Context, c *CellConfig) error
	DeleteCellConfig(ctx context.Context, key CellKey) error
	ListCellConfigs(ctx context.Context, templateID string) ([]CellConfig, error)
	DeleteTemplateConfigs(ctx context.Context, templateID string) error
}

// ColumnConfigRepository stores per-column report configuration.
type ColumnConfigRepository interface {
	GetColumnConfig(ctx context.Context, key ColumnKey) (*ColumnConfig, error)
	PutColumnConfig(ctx context.Context, c *ColumnConfig) error
	DeleteColumnConfig(ctx context.Context, key ColumnKey) error
	// ListColumnConfigs returns a template's configs ordered by section, then index.
	ListColumnConfigs(ctx context.Context, templateID string) ([]ColumnConfig, error)
}

// DataSourceRepository stores data source definitions.
type DataSourceRepository interface {
	GetDataSource(ctx context.Context, id string) (*DataSource, error)
	ListDataSources(ctx context.Context) ([]DataSource, error)
	PutDataSource(ctx context.Context, s *DataSource) error
	DeleteDataSource(ctx context.Context, id string) error
}

// Repository is the full configuration store.
type Repository interface {
	DatasetRepository
	CellConfigRepository
	ColumnConfigRepository
	DataSourceRepository
}
