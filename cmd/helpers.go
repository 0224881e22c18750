package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/docshape-cli/internal/config"
	"github.com/KaramelBytes/docshape-cli/internal/codec"
	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/store"
	"github.com/KaramelBytes/docshape-cli/internal/substitute"
	"github.com/KaramelBytes/docshape-cli/internal/template"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

// openStore opens the configuration store, applying pending migrations.
func openStore() (*store.SQLite, error) {
	c, err := config()
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(filepath.Dir(c.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	return store.OpenSQLite(c.StorePath)
}

func codecOptions(c *cfgpkg.Global) codec.Options {
	opt := codec.DefaultOptions()
	opt.Logger = logger
	opt.Sections.BatchSize = c.BatchSize
	opt.Sections.TableTimeout = c.TableTimeout()
	opt.Sections.BatchTimeout = c.BatchTimeout()
	opt.Sections.HeadingTableLimit = c.HeadingTableLimit
	return opt
}

// defaultSource builds the configured fallback data source, if any.
func defaultSource(c *cfgpkg.Global) *store.DataSource {
	if c.DefaultSourceType == "" {
		return nil
	}
	return &store.DataSource{
		ID:       "default",
		Name:     "default",
		Type:     c.DefaultSourceType,
		Host:     c.DefaultSourceHost,
		Port:     c.DefaultSourcePort,
		Database: c.DefaultSourceDatabase,
		Username: c.DefaultSourceUser,
		Password: c.DefaultSourcePassword,
		Active:   true,
	}
}

func newEngine(c *cfgpkg.Global, repo store.Repository) *substitute.Engine {
	e := substitute.New(repo, datasource.NewSQLExecutor(c.QueryTimeout(), logger), logger)
	e.MockFallback = c.MockFallback
	e.DefaultSource = defaultSource(c)
	return e
}

// newCodec returns a codec without a substitution engine.
func newCodec() (*codec.Codec, error) {
	c, err := config()
	if err != nil {
		return nil, err
	}
	return codec.New(nil, codecOptions(c)), nil
}

func loadTemplate(name string) (*template.Template, error) {
	c, err := config()
	if err != nil {
		return nil, err
	}
	dir, err := template.Dir(c.TemplatesDir, name)
	if err != nil {
		return nil, err
	}
	return template.Load(dir)
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

// writeStructured prints v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported --format: %s (use table|json|yaml)", format)
	}
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	return utils.TruncateRunes(s, n)
}
