package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite is a Repository backed by a SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SQLite)(nil)

// OpenSQLite opens path (":memory:" for a private in-memory database) and
// applies pending migrations.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeFields(f []string) (string, error) {
	if f == nil {
		f = []string{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

func decodeFields(v string) []string {
	var f []string
	if err := json.Unmarshal([]byte(v), &f); err != nil {
		return nil
	}
	return f
}

type scanner interface {
	Scan(dest ...any) error
}

const datasetColumns = `id, name, description, type, sql_query, fields, data_source_id, created_at, updated_at`

func scanDataset(r scanner) (*Dataset, error) {
	var d Dataset
	var fields, created, updated string
	if err := r.Scan(&d.ID, &d.Name, &d.Description, &d.Type, &d.SQLQuery, &fields, &d.DataSourceID, &created, &updated); err != nil {
		return nil, err
	}
	d.Fields = decodeFields(fields)
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return &d, nil
}

func (s *SQLite) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %q: %w", id, err)
	}
	return d, nil
}

func (s *SQLite) FindDatasetByName(ctx context.Context, name string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ?`, name)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset named %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find dataset %q: %w", name, err)
	}
	return d, nil
}

func (s *SQLite) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()
	var out []Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *SQLite) PutDataset(ctx context.Context, d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if other, err := s.FindDatasetByName(ctx, d.Name); err == nil && other.ID != d.ID {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("%q already used by dataset %s", d.Name, other.ID)}
	}
	fields, err := encodeFields(d.Fields)
	if err != nil {
		return err
	}
	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datasets (`+datasetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			type = excluded.type,
			sql_query = excluded.sql_query,
			fields = excluded.fields,
			data_source_id = excluded.data_source_id,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Description, d.Type, d.SQLQuery, fields, d.DataSourceID,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put dataset %q: %w", d.ID, err)
	}
	return nil
}

func (s *SQLite) DeleteDataset(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "dataset", `DELETE FROM datasets WHERE id = ?`, id)
}

func (s *SQLite) deleteOne(ctx context.Context, kind, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", kind, args, ErrNotFound)
	}
	return nil
}

const cellColumns = `template_id, cell_id, dataset_name, dataset_type, display_type, fields, sql_query, data_source_id, static_text, updated_at`

func scanCell(r scanner) (*CellConfig, error) {
	var c CellConfig
	var fields, updated string
	if err := r.Scan(&c.TemplateID, &c.CellID, &c.DatasetName, &c.DatasetType, &c.DisplayType,
		&fields, &c.SQLQuery, &c.DataSourceID, &c.StaticText, &updated); err != nil {
		return nil, err
	}
	c.Fields = decodeFields(fields)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func (s *SQLite) GetCellConfig(ctx context.Context, key CellKey) (*CellConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cellColumns+` FROM cell_configs WHERE template_id = ? AND cell_id = ?`,
		key.TemplateID, key.CellID)
	c, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cell config %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cell config %s: %w", key, err)
	}
	return c, nil
}

func (s *SQLite) PutCellConfig(ctx context.Context, c *CellConfig) error {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	fields, err := encodeFields(c.Fields)
	if err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cell_configs (`+cellColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(template_id, cell_id) DO UPDATE SET
			dataset_name = excluded.dataset_name,
			dataset_type = excluded.dataset_type,
			display_type = excluded.display_type,
			fields = excluded.fields,
			sql_query = excluded.sql_query,
			data_source_id = excluded.data_source_id,
			static_text = excluded.static_text,
			updated_at = excluded.updated_at`,
		c.TemplateID, c.CellID, c.DatasetName, c.DatasetType, c.DisplayType, fields,
		c.SQLQuery, c.DataSourceID, c.StaticText, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put cell config %s: %w", c.Key(), err)
	}
	return nil
}

func (s *SQLite) DeleteCellConfig(ctx context.Context, key CellKey) error {
	return s.deleteOne(ctx, "cell config", `DELETE FROM cell_configs WHERE template_id = ? AND cell_id = ?`,
		key.TemplateID, key.CellID)
}

func (s *SQLite) ListCellConfigs(ctx context.Context, templateID string) ([]CellConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cellColumns+` FROM cell_configs WHERE template_id = ? ORDER BY cell_id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list cell configs: %w", err)
	}
	defer rows.Close()
	var out []CellConfig
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cell config: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteTemplateConfigs(ctx context.Context, templateID string) error {
	for _, q := range []string{
		`DELETE FROM cell_configs WHERE template_id = ?`,
		`DELETE FROM column_configs WHERE template_id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, templateID); err != nil {
			return fmt.Errorf("delete configs for template %s: %w", templateID, err)
		}
	}
	return nil
}

const columnColumns = `template_id, section_id, column_index, data_type, value, sql_query, data_source_id, updated_at`

func scanColumn(r scanner) (*ColumnConfig, error) {
	var c ColumnConfig
	var updated string
	if err := r.Scan(&c.TemplateID, &c.SectionID, &c.Index, &c.DataType, &c.Value,
		&c.SQLQuery, &c.DataSourceID, &updated); err != nil {
		return nil, err
	}
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func (s *SQLite) GetColumnConfig(ctx context.Context, key ColumnKey) (*ColumnConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columnColumns+` FROM column_configs
		WHERE template_id = ? AND section_id = ? AND column_index = ?`,
		key.TemplateID, key.SectionID, key.Index)
	c, err := scanColumn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("column config %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get column config %s: %w", key, err)
	}
	return c, nil
}

func (s *SQLite) PutColumnConfig(ctx context.Context, c *ColumnConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO column_configs (`+columnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(template_id, section_id, column_index) DO UPDATE SET
			data_type = excluded.data_type,
			value = excluded.value,
			sql_query = excluded.sql_query,
			data_source_id = excluded.data_source_id,
			updated_at = excluded.updated_at`,
		c.TemplateID, c.SectionID, c.Index, c.DataType, c.Value, c.SQLQuery, c.DataSourceID,
		formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put column config %s: %w", c.Key(), err)
	}
	return nil
}

func (s *SQLite) DeleteColumnConfig(ctx context.Context, key ColumnKey) error {
	return s.deleteOne(ctx, "column config",
		`DELETE FROM column_configs WHERE template_id = ? AND section_id = ? AND column_index = ?`,
		key.TemplateID, key.SectionID, key.Index)
}

func (s *SQLite) ListColumnConfigs(ctx context.Context, templateID string) ([]ColumnConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columnColumns+` FROM column_configs
		WHERE template_id = ? ORDER BY section_id, column_index`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list column configs: %w", err)
	}
	defer rows.Close()
	var out []ColumnConfig
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column config: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const sourceColumns = `id, name, type, host, port, db_name, username, password, active, created_at, updated_at`

func scanSource(r scanner) (*DataSource, error) {
	var ds DataSource
	var active int
	var created, updated string
	if err := r.Scan(&ds.ID, &ds.Name, &ds.Type, &ds.Host, &ds.Port, &ds.Database, &ds.Username,
		&ds.Password, &active, &created, &updated); err != nil {
		return nil, err
	}
	ds.Active = active != 0
	ds.CreatedAt = parseTime(created)
	ds.UpdatedAt = parseTime(updated)
	return &ds, nil
}

func (s *SQLite) GetDataSource(ctx context.Context, id string) (*DataSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM data_sources WHERE id = ?`, id)
	ds, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data source %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get data source %q: %w", id, err)
	}
	return ds, nil
}

func (s *SQLite) ListDataSources(ctx context.Context) ([]DataSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM data_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()
	var out []DataSource
	for rows.Next() {
		ds, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data source: %w", err)
		}
		out = append(out, *ds)
	}
	return out, rows.Err()
}

func (s *SQLite) PutDataSource(ctx context.Context, ds *DataSource) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	now := s.now()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now
	active := 0
	if ds.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data_sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			host = excluded.host,
			port = excluded.port,
			db_name = excluded.db_name,
			username = excluded.username,
			password = excluded.password,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		ds.ID, ds.Name, ds.Type, ds.Host, ds.Port, ds.Database, ds.Username, ds.Password, active,
		formatTime(ds.CreatedAt), formatTime(ds.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put data source %q: %w", ds.ID, err)
	}
	return nil
}

func (s *SQLite) DeleteDataSource(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "data source", `DELETE FROM data_sources WHERE id = ?`, id)
}
