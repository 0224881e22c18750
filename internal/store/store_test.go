package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Repository{"memory": NewMemory(), "sqlite": sq}
}

func TestDatasetLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			d := &Dataset{ID: "d1", Name: "审计数据", Type: DatasetList, SQLQuery: "SELECT 1", Fields: []string{"a", "b"}}
			require.NoError(t, repo.PutDataset(ctx, d))
			assert.False(t, d.CreatedAt.IsZero())

			got, err := repo.GetDataset(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "审计数据", got.Name)
			assert.Equal(t, []string{"a", "b"}, got.Fields)

			byName, err := repo.FindDatasetByName(ctx, "审计数据")
			require.NoError(t, err)
			assert.Equal(t, "d1", byName.ID)

			dup := &Dataset{ID: "d2", Name: "审计数据", Type: DatasetSingle}
			var verr *ValidationError
			require.ErrorAs(t, repo.PutDataset(ctx, dup), &verr)
			assert.Equal(t, "name", verr.Field)

			d.Description = "updated"
			require.NoError(t, repo.PutDataset(ctx, d))
			list, err := repo.ListDatasets(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "updated", list[0].Description)

			require.NoError(t, repo.DeleteDataset(ctx, "d1"))
			_, err = repo.GetDataset(ctx, "d1")
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.ErrorIs(t, repo.DeleteDataset(ctx, "d1"), ErrNotFound)
		})
	}
}

func TestDatasetValidation(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			var verr *ValidationError
			require.ErrorAs(t, repo.PutDataset(ctx, &Dataset{ID: "x", Name: "n", Type: "table"}), &verr)
			assert.Equal(t, "type", verr.Field)
			require.ErrorAs(t, repo.PutDataset(ctx, &Dataset{ID: "x", Type: DatasetList}), &verr)
			assert.Equal(t, "name", verr.Field)
		})
	}
}

func TestCellConfigDefaultsAndScope(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			c := &CellConfig{TemplateID: "t1", CellID: "cell-b", DatasetName: "安全事件"}
			require.NoError(t, repo.PutCellConfig(ctx, c))
			require.NoError(t, repo.PutCellConfig(ctx, &CellConfig{TemplateID: "t1", CellID: "cell-a", DisplayType: DisplayText, StaticText: "静态"}))
			require.NoError(t, repo.PutCellConfig(ctx, &CellConfig{TemplateID: "t2", CellID: "cell-a"}))

			got, err := repo.GetCellConfig(ctx, CellKey{TemplateID: "t1", CellID: "cell-b"})
			require.NoError(t, err)
			assert.Equal(t, DatasetList, got.DatasetType)
			assert.Equal(t, DisplayDataset, got.DisplayType)

			list, err := repo.ListCellConfigs(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "cell-a", list[0].CellID)
			assert.Equal(t, "静态", list[0].StaticText)

			require.NoError(t, repo.DeleteTemplateConfigs(ctx, "t1"))
			list, err = repo.ListCellConfigs(ctx, "t1")
			require.NoError(t, err)
			assert.Empty(t, list)
			_, err = repo.GetCellConfig(ctx, CellKey{TemplateID: "t2", CellID: "cell-a"})
			assert.NoError(t, err)

			assert.ErrorIs(t, repo.DeleteCellConfig(ctx, CellKey{TemplateID: "t1", CellID: "cell-a"}), ErrNotFound)
		})
	}
}

func TestColumnConfigLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t1", SectionID: "section_1", Index: 2, DataType: "MANUAL", Value: "待定"}))
			require.NoError(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t1", SectionID: "section_1", Index: 0, DataType: "FIXED", Value: "信息部"}))
			require.NoError(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t1", SectionID: "section_0", Index: 1, DataType: "DYNAMIC", SQLQuery: "SELECT 1", DataSourceID: "pg"}))
			require.NoError(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t2", SectionID: "section_0", Index: 0, DataType: "FIXED"}))

			got, err := repo.GetColumnConfig(ctx, ColumnKey{TemplateID: "t1", SectionID: "section_0", Index: 1})
			require.NoError(t, err)
			assert.Equal(t, "SELECT 1", got.SQLQuery)
			assert.Equal(t, "pg", got.DataSourceID)
			assert.False(t, got.UpdatedAt.IsZero())

			require.NoError(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t1", SectionID: "section_1", Index: 2, DataType: "FIXED", Value: "已定"}))
			list, err := repo.ListColumnConfigs(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, ColumnKey{TemplateID: "t1", SectionID: "section_0", Index: 1}, list[0].Key())
			assert.Equal(t, 0, list[1].Index)
			assert.Equal(t, "已定", list[2].Value)

			require.NoError(t, repo.DeleteColumnConfig(ctx, ColumnKey{TemplateID: "t1", SectionID: "section_1", Index: 0}))
			assert.ErrorIs(t, repo.DeleteColumnConfig(ctx, ColumnKey{TemplateID: "t1", SectionID: "section_1", Index: 0}), ErrNotFound)

			require.NoError(t, repo.DeleteTemplateConfigs(ctx, "t1"))
			list, err = repo.ListColumnConfigs(ctx, "t1")
			require.NoError(t, err)
			assert.Empty(t, list)
			_, err = repo.GetColumnConfig(ctx, ColumnKey{TemplateID: "t2", SectionID: "section_0", Index: 0})
			assert.NoError(t, err)
		})
	}
}

func TestColumnConfigValidation(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			var verr *ValidationError
			require.ErrorAs(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t", SectionID: "s", DataType: "AUTO"}), &verr)
			assert.Equal(t, "dataType", verr.Field)
			require.ErrorAs(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t", SectionID: "s", DataType: "DYNAMIC"}), &verr)
			assert.Equal(t, "sqlQuery", verr.Field)
			require.ErrorAs(t, repo.PutColumnConfig(ctx, &ColumnConfig{TemplateID: "t", SectionID: "s", Index: -1, DataType: "FIXED"}), &verr)
			assert.Equal(t, "index", verr.Field)
		})
	}
}

func TestDataSourceLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ds := &DataSource{ID: "pg", Name: "audit", Type: SourcePostgres, Host: "db", Port: 5432, Database: "audit", Username: "u", Password: "p", Active: true}
			require.NoError(t, repo.PutDataSource(ctx, ds))
			got, err := repo.GetDataSource(ctx, "pg")
			require.NoError(t, err)
			assert.Equal(t, 5432, got.Port)
			assert.Equal(t, "p", got.Password)
			assert.True(t, got.Active)

			var verr *ValidationError
			require.ErrorAs(t, repo.PutDataSource(ctx, &DataSource{ID: "x", Name: "x", Type: "oracle"}), &verr)
			assert.Equal(t, "type", verr.Field)

			list, err := repo.ListDataSources(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, repo.DeleteDataSource(ctx, "pg"))
			_, err = repo.GetDataSource(ctx, "pg")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.PutDataset(ctx, &Dataset{ID: "d", Name: "n", Type: DatasetSingle}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	d, err := s.GetDataset(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, DatasetSingle, d.Type)
	assert.Empty(t, d.Fields)
}
