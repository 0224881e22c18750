package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Repository.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string]Dataset
	cells    map[CellKey]CellConfig
	columns  map[ColumnKey]ColumnConfig
	sources  map[string]DataSource
	now      func() time.Time
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		datasets: map[string]Dataset{},
		cells:    map[CellKey]CellConfig{},
		columns:  map[ColumnKey]ColumnConfig{},
		sources:  map[string]DataSource{},
		now:      time.Now,
	}
}

func (m *Memory) GetDataset(_ context.Context, id string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	d.Fields = slices.Clone(d.Fields)
	return &d, nil
}

func (m *Memory) FindDatasetByName(_ context.Context, name string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.datasets {
		if d.Name == name {
			d.Fields = slices.Clone(d.Fields)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("dataset named %q: %w", name, ErrNotFound)
}

func (m *Memory) ListDatasets(_ context.Context) ([]Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) PutDataset(_ context.Context, d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.datasets {
		if other.Name == d.Name && id != d.ID {
			return &ValidationError{Field: "name", Reason: fmt.Sprintf("%q already used by dataset %s", d.Name, id)}
		}
	}
	now := m.now()
	if prev, ok := m.datasets[d.ID]; ok {
		d.CreatedAt = prev.CreatedAt
	} else if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	cp := *d
	cp.Fields = slices.Clone(d.Fields)
	m.datasets[d.ID] = cp
	return nil
}

func (m *Memory) DeleteDataset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[id]; !ok {
		return fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	delete(m.datasets, id)
	return nil
}

func (m *Memory) GetCellConfig(_ context.Context, key CellKey) (*CellConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[key]
	if !ok {
		return nil, fmt.Errorf("cell config %s: %w", key, ErrNotFound)
	}
	c.Fields = slices.Clone(c.Fields)
	return &c, nil
}

func (m *Memory) PutCellConfig(_ context.Context, c *CellConfig) error {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = m.now()
	cp := *c
	cp.Fields = slices.Clone(c.Fields)
	m.cells[c.Key()] = cp
	return nil
}

func (m *Memory) DeleteCellConfig(_ context.Context, key CellKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cells[key]; !ok {
		return fmt.Errorf("cell config %s: %w", key, ErrNotFound)
	}
	delete(m.cells, key)
	return nil
}

func (m *Memory) ListCellConfigs(_ context.Context, templateID string) ([]CellConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CellConfig
	for k, c := range m.cells {
		if k.TemplateID == templateID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CellID < out[j].CellID })
	return out, nil
}

func (m *Memory) DeleteTemplateConfigs(_ context.Context, templateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.cells {
		if k.TemplateID == templateID {
			delete(m.cells, k)
		}
	}
	for k := range m.columns {
		if k.TemplateID == templateID {
			delete(m.columns, k)
		}
	}
	return nil
}

func (m *Memory) GetColumnConfig(_ context.Context, key ColumnKey) (*ColumnConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.columns[key]
	if !ok {
		return nil, fmt.Errorf("column config %s: %w", key, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) PutColumnConfig(_ context.Context, c *ColumnConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = m.now()
	m.columns[c.Key()] = *c
	return nil
}

func (m *Memory) DeleteColumnConfig(_ context.Context, key ColumnKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.columns[key]; !ok {
		return fmt.Errorf("column config %s: %w", key, ErrNotFound)
	}
	delete(m.columns, key)
	return nil
}

func (m *Memory) ListColumnConfigs(_ context.Context, templateID string) ([]ColumnConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ColumnConfig
	for k, c := range m.columns {
		if k.TemplateID == templateID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID < out[j].SectionID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (m *Memory) GetDataSource(_ context.Context, id string) (*DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("data source %q: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *Memory) ListDataSources(_ context.Context) ([]DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DataSource, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) PutDataSource(_ context.Context, s *DataSource) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if prev, ok := m.sources[s.ID]; ok {
		s.CreatedAt = prev.CreatedAt
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.sources[s.ID] = *s
	return nil
}

func (m *Memory) DeleteDataSource(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("data source %q: %w", id, ErrNotFound)
	}
	delete(m.sources, id)
	return nil
}
