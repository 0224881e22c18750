package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.BatchSize != 5 || c.TableTimeout() != 10*time.Second || c.BatchTimeout() != 30*time.Second {
		t.Fatalf("unexpected builder defaults: %+v", c)
	}
	if c.HeadingTableLimit != 50 {
		t.Fatalf("heading table limit: %d", c.HeadingTableLimit)
	}
	if !c.MockFallback {
		t.Fatalf("mock fallback should default to on")
	}
	if c.StorePath != filepath.Join(home, ".docshape", "store.db") {
		t.Fatalf("store path: %s", c.StorePath)
	}
	if c.TemplatesDir != filepath.Join(home, ".docshape", "templates") {
		t.Fatalf("templates dir: %s", c.TemplatesDir)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.Department = "审计部"
	c.BatchSize = 3
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	c2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c2.Department != "审计部" || c2.BatchSize != 3 {
		t.Fatalf("reload mismatch: %+v", c2)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCSHAPE_CURRENT_USER", "alice")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.CurrentUser != "alice" {
		t.Fatalf("env override not applied: %q", c.CurrentUser)
	}
}
