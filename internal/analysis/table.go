package analysis

import (
	"context"
	"fmt"
	"time"
)

// Table types.
const (
	TypeSimple  = "simple"
	TypeMerged  = "merged"
	TypeUnknown = "unknown"
)

// Header data types.
const (
	DataFixed   = "FIXED"
	DataManual  = "MANUAL"
	DataDynamic = "DYNAMIC"
)

// Header is one logical column of a table.
type Header struct {
	Index        int     `json:"index" yaml:"index"`
	Name         string  `json:"name" yaml:"name"`
	OriginalName string  `json:"originalName" yaml:"originalName"`
	ParentHeader *string `json:"parentHeader" yaml:"parentHeader"`
	DataType     string  `json:"dataType" yaml:"dataType"`
	Value        string  `json:"value" yaml:"value"`
	SQLQuery     string  `json:"sqlQuery" yaml:"sqlQuery"`
	DataSourceID *string `json:"dataSourceId" yaml:"dataSourceId"`
}

// Parent returns the parent header name, or "" for a standalone column.
func (h Header) Parent() string {
	if h.ParentHeader == nil {
		return ""
	}
	return *h.ParentHeader
}

// TableStructure describes one table, or the primary table of a section.
type TableStructure struct {
	HasTable      bool             `json:"hasTable" yaml:"hasTable"`
	Headers       []Header         `json:"headers" yaml:"headers"`
	RowCount      int              `json:"rowCount" yaml:"rowCount"`
	ColumnCount   int              `json:"columnCount" yaml:"columnCount"`
	TableType     string           `json:"tableType" yaml:"tableType"`
	ParseStrategy string           `json:"parseStrategy" yaml:"parseStrategy"`
	Confidence    float64          `json:"confidence" yaml:"confidence"`
	TableIndex    int              `json:"tableIndex" yaml:"tableIndex"`
	AllTables     []TableStructure `json:"allTables,omitempty" yaml:"allTables,omitempty"`
}

// Score ranks tables when promoting the primary table of a section.
func (t TableStructure) Score() float64 {
	return t.Confidence * float64(t.ColumnCount)
}

// Analyze parses and classifies a single table.
func Analyze(tableHTML string) TableStructure {
	return AnalyzeRows(ParseRows(tableHTML))
}

// AnalyzeRows classifies already parsed rows. The highest confidence
// strategy wins; ties keep the earlier strategy.
func AnalyzeRows(rows [][]Cell) TableStructure {
	if len(rows) == 0 {
		return TableStructure{Headers: []Header{}}
	}
	ts := TableStructure{
		HasTable:      true,
		Headers:       []Header{},
		RowCount:      len(rows),
		ColumnCount:   ColumnCount(rows),
		TableType:     TypeUnknown,
		ParseStrategy: "none",
	}
	var best *Classification
	for _, s := range Strategies {
		c, ok := s.Classify(rows)
		if !ok || c.Confidence <= 0 {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			c.Strategy = s.Name
			best = &c
		}
	}
	if best == nil {
		return ts
	}
	ts.TableType = best.TableType
	ts.ParseStrategy = best.Strategy
	ts.Confidence = best.Confidence
	ts.Headers = best.Headers
	return ts
}

// AnalyzeWithTimeout runs Analyze under a deadline. A table that does not
// finish in time yields an error and no result.
func AnalyzeWithTimeout(ctx context.Context, tableHTML string, timeout time.Duration) (TableStructure, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	done := make(chan TableStructure, 1)
	go func() { done <- Analyze(tableHTML) }()
	select {
	case ts := <-done:
		return ts, nil
	case <-ctx.Done():
		return TableStructure{}, fmt.Errorf("analyze table: %w", ctx.Err())
	}
}

// AnalyzeAll analyzes every table independently and promotes the one with
// the best confidence × columnCount score. Tables that fail or time out are
// left out of AllTables.
func AnalyzeAll(ctx context.Context, tables []string, perTable time.Duration) TableStructure {
	out := TableStructure{Headers: []Header{}, TableType: TypeSimple, ParseStrategy: "none"}
	if len(tables) == 0 {
		return out
	}
	out.HasTable = true
	out.ParseStrategy = "auto"

	var all []TableStructure
	for i, t := range tables {
		ts, err := AnalyzeWithTimeout(ctx, t, perTable)
		if err != nil {
			continue
		}
		ts.TableIndex = i
		all = append(all, ts)
	}
	if main, ok := SelectMain(all); ok {
		out = main
		out.ParseStrategy = "auto"
	}
	out.AllTables = all
	return out
}

// SelectMain returns the table with the highest score; the first wins ties.
func SelectMain(tables []TableStructure) (TableStructure, bool) {
	if len(tables) == 0 {
		return TableStructure{}, false
	}
	best := tables[0]
	for _, t := range tables[1:] {
		if t.Score() > best.Score() {
			best = t
		}
	}
	return best, true
}
