// Package codec moves documents between Word and the HTML working form:
// import (convert, normalize, structure), reparse, export (substitute,
// render) and markdown preview.
package codec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/KaramelBytes/docshape-cli/internal/normalize"
	"github.com/KaramelBytes/docshape-cli/internal/parser"
	"github.com/KaramelBytes/docshape-cli/internal/render"
	"github.com/KaramelBytes/docshape-cli/internal/sections"
	"github.com/KaramelBytes/docshape-cli/internal/store"
	"github.com/KaramelBytes/docshape-cli/internal/substitute"
)

// Options configures the stages of a Codec.
type Options struct {
	Normalize normalize.Options
	Sections  sections.Options
	Logger    *slog.Logger
}

// DefaultOptions returns the import defaults of every stage.
func DefaultOptions() Options {
	return Options{
		Normalize: normalize.DefaultOptions(),
		Sections:  sections.DefaultOptions(),
	}
}

// Codec runs the import and export pipelines.
type Codec struct {
	normalizer *normalize.Normalizer
	builder    *sections.Builder
	engine     *substitute.Engine
	md         *converter.Converter
	logger     *slog.Logger
}

// New creates a Codec. engine may be nil, in which case Export renders the
// HTML unchanged.
func New(engine *substitute.Engine, opt Options) *Codec {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opt.Normalize.Logger == nil {
		opt.Normalize.Logger = logger
	}
	if opt.Sections.Logger == nil {
		opt.Sections.Logger = logger
	}
	return &Codec{
		normalizer: normalize.New(opt.Normalize),
		builder:    sections.NewBuilder(opt.Sections),
		engine:     engine,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Imported is the result of importing a source document.
type Imported struct {
	Source    string
	HTML      string
	Structure *sections.DocumentStructure
	Warnings  []string
}

// Import converts the file at path, normalizes the HTML and infers its
// section structure.
func (c *Codec) Import(ctx context.Context, path string) (*Imported, error) {
	conv, err := parser.ConvertFile(path)
	if err != nil {
		return nil, err
	}
	for _, w := range conv.Warnings {
		c.logger.Warn("conversion", "file", path, "detail", w)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	html := c.normalizer.Normalize(conv.HTML)
	structure := c.builder.Parse(ctx, html)
	c.logger.Info("imported document",
		"file", path,
		"sections", structure.Metadata.TotalSections,
		"tables", structure.Metadata.TotalTables,
		"strategy", structure.Metadata.ParseStrategy)
	return &Imported{Source: path, HTML: html, Structure: structure, Warnings: conv.Warnings}, nil
}

// Reparse rebuilds the structure of already-normalized HTML, typically
// after it was edited.
func (c *Codec) Reparse(ctx context.Context, html string) *sections.DocumentStructure {
	return c.builder.Parse(ctx, html)
}

// Exported is a rendered document plus the substitution report.
type Exported struct {
	Docx   []byte
	Result *substitute.Result
}

// Substitute resolves placeholders without rendering.
func (c *Codec) Substitute(ctx context.Context, html string, vars substitute.Vars) (*substitute.Result, error) {
	if c.engine == nil {
		return &substitute.Result{HTML: html}, nil
	}
	return c.engine.Substitute(ctx, html, vars)
}

// Export substitutes placeholders and renders the result as .docx.
func (c *Codec) Export(ctx context.Context, html string, vars substitute.Vars) (*Exported, error) {
	res, err := c.Substitute(ctx, html, vars)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	data, err := render.Render(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if len(res.Mocked) > 0 {
		c.logger.Warn("export used sample data", "datasets", strings.Join(res.Mocked, ","))
	}
	return &Exported{Docx: data, Result: res}, nil
}

// Report fills the section structure from column configs and renders the
// report as .docx.
func (c *Codec) Report(ctx context.Context, doc *sections.DocumentStructure, cols []store.ColumnConfig) (*Exported, error) {
	if c.engine == nil {
		return nil, errors.New("report: no substitution engine")
	}
	if doc == nil {
		return nil, errors.New("report: template has no structure")
	}
	res, err := c.engine.Report(ctx, doc, cols)
	if err != nil {
		return nil, err
	}
	data, err := render.Render(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if len(res.Mocked) > 0 {
		c.logger.Warn("report used sample data", "datasets", strings.Join(res.Mocked, ","))
	}
	return &Exported{Docx: data, Result: res}, nil
}

// Markdown renders HTML as GitHub-flavoured markdown for terminal preview.
func (c *Codec) Markdown(html string) (string, error) {
	out, err := c.md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
