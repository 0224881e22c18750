// Package template persists imported documents: the normalized HTML plus the
// inferred structure.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/docshape-cli/internal/sections"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

const (
	metaFileName = "template.json"
	htmlFileName = "document.html"
)

// ErrNotFound is returned when no template exists under a name.
var ErrNotFound = errors.New("template not found")

// Template is an imported document persisted on disk.
type Template struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	SourceFile  string                      `json:"source_file"`
	Structure   *sections.DocumentStructure `json:"structure"`
	Warnings    []string                    `json:"warnings,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	// on-disk location of template.json
	rootDir string
}

// Dir returns the directory of the named template under templatesDir.
func Dir(templatesDir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(templatesDir, name), nil
}

// ValidateName rejects names that are not a single path element.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("template name is required")
	case name == "." || name == "..", strings.ContainsAny(name, `/\`):
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}

// New constructs an in-memory template. Call Save to persist.
func New(name, description, rootDir string) *Template {
	now := time.Now()
	return &Template{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Load reads template.json from dir.
func Load(dir string) (*Template, error) {
	path := filepath.Join(dir, metaFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	t.rootDir = dir
	return &t, nil
}

// RootDir returns the on-disk template directory.
func (t *Template) RootDir() string { return t.rootDir }

// Save writes template.json atomically.
func (t *Template) Save() error {
	if t.rootDir == "" {
		return errors.New("template directory not set")
	}
	if err := utils.EnsureDir(t.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	t.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(t)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(t.rootDir, metaFileName), data)
}

// HTML returns the stored document HTML.
func (t *Template) HTML() (string, error) {
	b, err := os.ReadFile(filepath.Join(t.rootDir, htmlFileName))
	if err != nil {
		return "", fmt.Errorf("read document html: %w", err)
	}
	return string(b), nil
}

// SetHTML replaces the stored document HTML.
func (t *Template) SetHTML(html string) error {
	if err := utils.EnsureDir(t.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if err := utils.SafeWriteFile(filepath.Join(t.rootDir, htmlFileName), []byte(html)); err != nil {
		return err
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Restructure replaces the structure after a reparse and returns the ids
// of sections that no longer exist. Section ids are positional, so cell
// configuration keyed by them may need to be revisited.
func (t *Template) Restructure(s *sections.DocumentStructure, logger *slog.Logger) []string {
	var dropped []string
	if t.Structure != nil {
		for _, old := range t.Structure.Sections {
			sec, ok := s.FindSection(old.ID)
			if !ok || sec.Title != old.Title {
				dropped = append(dropped, old.ID)
			}
		}
	}
	if len(dropped) > 0 && logger != nil {
		logger.Warn("section ids changed after reparse", "template", t.Name, "sections", strings.Join(dropped, ","))
	}
	t.Structure = s
	t.UpdatedAt = time.Now()
	return dropped
}

// SectionByID looks up a section of the stored structure.
func (t *Template) SectionByID(id string) (*sections.Section, bool) {
	if t.Structure == nil {
		return nil, false
	}
	return t.Structure.FindSection(id)
}

// List loads every template under templatesDir, sorted by name. Directories
// without template.json are skipped.
func List(templatesDir string) ([]*Template, error) {
	entries, err := os.ReadDir(templatesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	var out []*Template
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := Load(filepath.Join(templatesDir, e.Name()))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remove deletes the named template directory.
func Remove(templatesDir, name string) error {
	dir, err := Dir(templatesDir, name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, metaFileName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return os.RemoveAll(dir)
}
