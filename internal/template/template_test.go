package template_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/docshape-cli/internal/sections"
	"github.com/KaramelBytes/docshape-cli/internal/template"
)

func structure(titles ...string) *sections.DocumentStructure {
	s := &sections.DocumentStructure{Title: "报告"}
	for i, title := range titles {
		s.Sections = append(s.Sections, sections.Section{ID: "section_" + string(rune('0'+i)), Title: title})
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir, err := template.Dir(root, "audit")
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	tpl := template.New("audit", "季度审计", dir)
	tpl.SourceFile = "audit.docx"
	tpl.Structure = structure("概述", "明细")
	if err := tpl.SetHTML("<h1>概述</h1>"); err != nil {
		t.Fatalf("set html: %v", err)
	}
	if err := tpl.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := template.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != tpl.ID || got.Name != "audit" || got.SourceFile != "audit.docx" {
		t.Fatalf("unexpected template: %+v", got)
	}
	html, err := got.HTML()
	if err != nil || html != "<h1>概述</h1>" {
		t.Fatalf("html = %q, %v", html, err)
	}
	sec, ok := got.SectionByID("section_1")
	if !ok || sec.Title != "明细" {
		t.Fatalf("section lookup: %+v %v", sec, ok)
	}
	if _, ok := got.SectionByID("section_9"); ok {
		t.Fatal("expected unknown section")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := template.Load(filepath.Join(t.TempDir(), "none"))
	if !errors.Is(err, template.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
		if err := template.ValidateName(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if err := template.ValidateName("年度报告"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestListAndRemove(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b", "a"} {
		dir, _ := template.Dir(root, name)
		if err := template.New(name, "", dir).Save(); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "stray"), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err := template.List(root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected list: %v", list)
	}

	if err := template.Remove(root, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := template.Remove(root, "a"); !errors.Is(err, template.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	list, _ = template.List(root)
	if len(list) != 1 {
		t.Fatalf("expected 1 template left, got %d", len(list))
	}

	empty, err := template.List(filepath.Join(root, "missing"))
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing dir: %v %v", empty, err)
	}
}

func TestRestructureReportsChangedSections(t *testing.T) {
	tpl := template.New("x", "", t.TempDir())
	if dropped := tpl.Restructure(structure("一", "二", "三"), nil); len(dropped) != 0 {
		t.Fatalf("first structure should drop nothing: %v", dropped)
	}
	dropped := tpl.Restructure(structure("一", "新增", "二"), nil)
	if len(dropped) != 2 || dropped[0] != "section_1" || dropped[1] != "section_2" {
		t.Fatalf("dropped = %v", dropped)
	}
	if len(tpl.Structure.Sections) != 3 || tpl.Structure.Sections[1].Title != "新增" {
		t.Fatalf("structure not replaced")
	}
}
