// Package sections segments a normalized HTML document into titled sections
// and attaches table analysis to each.
package sections

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
	"github.com/KaramelBytes/docshape-cli/internal/markup"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

// Section types.
const (
	TypeDetail  = "detail"
	TypeSummary = "summary"
	TypeStatic  = "static"
)

// Parse strategies reported in document metadata.
const (
	StrategyHeading  = "heading"
	StrategyTable    = "table"
	StrategyFallback = "fallback"
)

// FallbackTitle names the single section of an unstructured document.
const FallbackTitle = "文档内容"

const (
	previewRunes    = 100
	rawContentRunes = 200
	titleWindow     = 500
	wideTitleWindow = 1000
)

// Section is a titled slice of the document.
type Section struct {
	ID             string                   `json:"id" yaml:"id"`
	Level          int                      `json:"level" yaml:"level"`
	Title          string                   `json:"title" yaml:"title"`
	HasTable       bool                     `json:"hasTable" yaml:"hasTable"`
	HasContent     bool                     `json:"hasContent" yaml:"hasContent"`
	ContentPreview string                   `json:"contentPreview" yaml:"contentPreview"`
	TableStructure *analysis.TableStructure `json:"tableStructure,omitempty" yaml:"tableStructure,omitempty"`
	RawContent     string                   `json:"rawContent" yaml:"rawContent"`
	OriginalHTML   string                   `json:"originalHtml" yaml:"-"`
	Type           string                   `json:"type" yaml:"type"`
	Fields         []Field                  `json:"fields" yaml:"fields"`
}

// Metadata summarizes one parse pass.
type Metadata struct {
	ParseStrategy string    `json:"parseStrategy" yaml:"parseStrategy"`
	ParsedAt      time.Time `json:"parsedAt" yaml:"parsedAt"`
	TotalTables   int       `json:"totalTables" yaml:"totalTables"`
	TotalSections int       `json:"totalSections" yaml:"totalSections"`
}

// DocumentStructure is the root of an import.
type DocumentStructure struct {
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
	Metadata Metadata  `json:"metadata" yaml:"metadata"`
}

// Options controls section building.
type Options struct {
	// BatchSize is the number of tables analyzed per batch on the per-table path.
	BatchSize int
	// TableTimeout bounds the analysis of one table.
	TableTimeout time.Duration
	// BatchTimeout bounds one batch of tables.
	BatchTimeout time.Duration
	// HeadingTableLimit disables heading-based slicing for table-dense documents.
	HeadingTableLimit int
	Logger            *slog.Logger
	// Now stamps metadata; structural decisions never depend on it.
	Now func() time.Time
}

// DefaultOptions returns the documented builder defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:         5,
		TableTimeout:      10 * time.Second,
		BatchTimeout:      30 * time.Second,
		HeadingTableLimit: 50,
	}
}

// Builder builds sections from normalized HTML.
type Builder struct {
	opt     Options
	log     *slog.Logger
	analyze func(ctx context.Context, tableHTML string, timeout time.Duration) (analysis.TableStructure, error)
}

// NewBuilder fills unset options with defaults.
func NewBuilder(opt Options) *Builder {
	def := DefaultOptions()
	if opt.BatchSize <= 0 {
		opt.BatchSize = def.BatchSize
	}
	if opt.TableTimeout <= 0 {
		opt.TableTimeout = def.TableTimeout
	}
	if opt.BatchTimeout <= 0 {
		opt.BatchTimeout = def.BatchTimeout
	}
	if opt.HeadingTableLimit <= 0 {
		opt.HeadingTableLimit = def.HeadingTableLimit
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{opt: opt, log: log, analyze: analysis.AnalyzeWithTimeout}
}

// Parse builds the full document structure: title, sections and metadata.
func (b *Builder) Parse(ctx context.Context, html string) *DocumentStructure {
	secs, strategy := b.build(ctx, html)
	tables := 0
	for _, s := range secs {
		if s.HasTable {
			tables++
		}
	}
	return &DocumentStructure{
		Title:    ExtractTitle(html),
		Sections: secs,
		Metadata: Metadata{
			ParseStrategy: strategy,
			ParsedAt:      b.opt.Now(),
			TotalTables:   tables,
			TotalSections: len(secs),
		},
	}
}

// Build segments the document into sections. It always returns at least one
// section.
func (b *Builder) Build(ctx context.Context, html string) []Section {
	secs, _ := b.build(ctx, html)
	return secs
}

func (b *Builder) build(ctx context.Context, html string) ([]Section, string) {
	tables := markup.Find(html, "table", nil)
	pattern := DetectHeaderPattern(html)

	var (
		secs     []Section
		strategy string
	)
	if len(pattern.Headings) > 0 && len(tables) < b.opt.HeadingTableLimit {
		b.log.Debug("splitting by headings", "pattern", pattern.Name, "headings", len(pattern.Headings), "tables", len(tables))
		secs, strategy = b.byHeadings(ctx, html, pattern.Headings), StrategyHeading
	} else {
		b.log.Debug("splitting by tables", "tables", len(tables), "headings", len(pattern.Headings))
		secs, strategy = b.byTables(ctx, html, tables), StrategyTable
	}
	if len(secs) == 0 {
		return []Section{b.fallback(ctx, html)}, StrategyFallback
	}
	return secs, strategy
}

func (b *Builder) byHeadings(ctx context.Context, html string, hs []Heading) []Section {
	out := make([]Section, 0, len(hs))
	for i, h := range hs {
		if i > 0 && i%10 == 0 && ctx.Err() != nil {
			b.log.Warn("section build cancelled", "built", len(out), "err", ctx.Err())
			break
		}
		end := len(html)
		if i+1 < len(hs) {
			end = hs[i+1].Start
		}
		content := html[h.End:end]
		ts := b.analyzeTables(ctx, content)
		text := utils.CleanText(content)
		out = append(out, Section{
			ID:             fmt.Sprintf("section_%d", i),
			Level:          h.Level,
			Title:          h.Title,
			HasTable:       ts.HasTable,
			HasContent:     text != "" || ts.HasTable,
			ContentPreview: utils.TruncateRunes(text, previewRunes),
			TableStructure: &ts,
			RawContent:     utils.TruncateRunes(content, rawContentRunes),
			OriginalHTML:   content,
			Type:           InferType(h.Title, ts.HasTable),
			Fields:         ExtractFields(content),
		})
	}
	return out
}

func (b *Builder) analyzeTables(ctx context.Context, fragment string) analysis.TableStructure {
	els := markup.Find(fragment, "table", nil)
	tables := make([]string, len(els))
	for i, el := range els {
		tables[i] = el.Outer(fragment)
	}
	return analysis.AnalyzeAll(ctx, tables, b.opt.TableTimeout)
}

// byTables emits one section per top-level table. Tables are analyzed in
// batches; a table that fails or misses its deadline is dropped.
func (b *Builder) byTables(ctx context.Context, html string, tables []markup.Element) []Section {
	results := make([]*Section, len(tables))
	size := b.opt.BatchSize
	for start := 0; start < len(tables); start += size {
		if err := ctx.Err(); err != nil {
			b.log.Warn("table sections cancelled", "processed", start, "err", err)
			break
		}
		end := min(start+size, len(tables))
		bctx, cancel := context.WithTimeout(ctx, b.opt.BatchTimeout)
		g, gctx := errgroup.WithContext(bctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				sec, err := b.tableSection(gctx, html, tables[i], i)
				if err != nil {
					b.log.Warn("table analysis dropped", "table", i, "err", err)
					return nil
				}
				results[i] = sec
				return nil
			})
		}
		_ = g.Wait()
		cancel()
		b.log.Debug("table batch done", "from", start, "to", end)
		runtime.Gosched()
	}
	out := make([]Section, 0, len(tables))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (b *Builder) tableSection(ctx context.Context, html string, el markup.Element, index int) (*Section, error) {
	tableHTML := el.Outer(html)
	one, err := b.analyze(ctx, tableHTML, b.opt.TableTimeout)
	if err != nil {
		return nil, err
	}
	one.TableIndex = index
	ts := one
	ts.ParseStrategy = "auto"
	ts.AllTables = []analysis.TableStructure{one}

	title := TableTitle(html, el.Start, index)
	text := utils.CleanText(tableHTML)
	return &Section{
		ID:             fmt.Sprintf("table_section_%d", index),
		Level:          1,
		Title:          title,
		HasTable:       true,
		HasContent:     true,
		ContentPreview: utils.TruncateRunes(text, previewRunes),
		TableStructure: &ts,
		RawContent:     utils.TruncateRunes(tableHTML, rawContentRunes),
		OriginalHTML:   tableHTML,
		Type:           InferType(title, true),
		Fields:         ExtractFields(tableHTML),
	}, nil
}

// TableTitle resolves the title of the table starting at byte offset pos,
// searching the preceding text and widening the window once before falling
// back to a numbered placeholder.
func TableTitle(html string, pos, index int) string {
	for _, w := range []int{titleWindow, wideTitleWindow} {
		from := utils.AlignStart(html, pos-w)
		if t := NearbyTitle(html[from:pos]); t != "" {
			return t
		}
	}
	return fmt.Sprintf("表格 %d", index+1)
}

func (b *Builder) fallback(ctx context.Context, html string) Section {
	ts := b.analyzeTables(ctx, html)
	return Section{
		ID:             "section_0",
		Level:          1,
		Title:          FallbackTitle,
		HasTable:       ts.HasTable,
		HasContent:     true,
		ContentPreview: utils.TruncateRunes(utils.CleanText(html), previewRunes),
		TableStructure: &ts,
		RawContent:     utils.TruncateRunes(html, rawContentRunes),
		OriginalHTML:   html,
		Type:           TypeStatic,
		Fields:         ExtractFields(html),
	}
}

var (
	detailRe  = regexp.MustCompile(`明细|细则`)
	summaryRe = regexp.MustCompile(`汇总|合计|总计`)
)

// InferType classifies a section from its title keywords. Only sections
// with a table can be detail or summary.
func InferType(title string, hasTable bool) string {
	switch {
	case hasTable && detailRe.MatchString(title):
		return TypeDetail
	case hasTable && summaryRe.MatchString(title):
		return TypeSummary
	default:
		return TypeStatic
	}
}

// FindSection returns the section with the given id.
func (d *DocumentStructure) FindSection(id string) (*Section, bool) {
	for i := range d.Sections {
		if strings.EqualFold(d.Sections[i].ID, id) {
			return &d.Sections[i], true
		}
	}
	return nil, false
}
