// Package datasource runs dataset queries against configured relational
// sources.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// DefaultQueryTimeout bounds a single dataset query.
const DefaultQueryTimeout = 30 * time.Second

// ErrUnsupportedSource is returned for data source types without a driver.
var ErrUnsupportedSource = errors.New("unsupported data source type")

// Row is one result record keyed by column name.
type Row map[string]any

// ResultSet is the outcome of one query.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the set has no rows.
func (r *ResultSet) Empty() bool { return r == nil || len(r.Rows) == 0 }

// First returns the first row or nil.
func (r *ResultSet) First() Row {
	if r.Empty() {
		return nil
	}
	return r.Rows[0]
}

// Executor runs SQL against a data source.
type Executor interface {
	Query(ctx context.Context, src store.DataSource, query string) (*ResultSet, error)
}

// SQLExecutor opens a database/sql handle per query.
type SQLExecutor struct {
	QueryTimeout time.Duration
	Logger       *slog.Logger

	open func(driver, dsn string) (*sql.DB, error)
}

var _ Executor = (*SQLExecutor)(nil)

// NewSQLExecutor returns an executor with the given timeout; zero selects
// DefaultQueryTimeout.
func NewSQLExecutor(timeout time.Duration, logger *slog.Logger) *SQLExecutor {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLExecutor{QueryTimeout: timeout, Logger: logger, open: sql.Open}
}

// Driver returns the database/sql driver name and DSN for src.
func Driver(src store.DataSource) (string, string, error) {
	switch strings.ToLower(src.Type) {
	case store.SourcePostgres, "postgres":
		return "pgx", BuildPostgresDSN(src), nil
	case store.SourceSQLite:
		if src.Database == "" {
			return "", "", fmt.Errorf("sqlite source %q: database path required", src.Name)
		}
		return "sqlite", "file:" + src.Database + "?mode=ro", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Type)
	}
}

func (e *SQLExecutor) connect(ctx context.Context, src store.DataSource) (*sql.DB, error) {
	driver, dsn, err := Driver(src)
	if err != nil {
		return nil, err
	}
	e.Logger.Debug("opening data source", slog.String("source", src.Name), slog.String("driver", driver), slog.String("host", src.Host))
	open := e.open
	if open == nil {
		open = sql.Open
	}
	db, err := open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", src.Name, err)
	}
	return db, nil
}

func (e *SQLExecutor) timeout() time.Duration {
	if e.QueryTimeout <= 0 {
		return DefaultQueryTimeout
	}
	return e.QueryTimeout
}

// Ping verifies that src accepts connections.
func (e *SQLExecutor) Ping(ctx context.Context, src store.DataSource) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	db, err := e.connect(ctx, src)
	if err != nil {
		return err
	}
	return db.Close()
}

// Query runs query on src and scans every row.
func (e *SQLExecutor) Query(ctx context.Context, src store.DataSource, query string) (*ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	db, err := e.connect(ctx, src)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", src.Name, err)
	}
	defer rows.Close()

	rs, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", src.Name, err)
	}
	e.Logger.Debug("query finished", slog.String("source", src.Name), slog.Int("rows", len(rs.Rows)), slog.Duration("took", time.Since(start)))
	return rs, nil
}

func scanRows(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rs, nil
}

// Format renders a scanned value as display text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}
