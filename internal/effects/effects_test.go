package effects

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnvReturnsEmbeddedDefault(t *testing.T) {
	table, err := LoadFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if _, ok := table.Get("transform"); !ok {
		t.Fatalf("want transform group present")
	}
	if _, ok := table.Get("effects"); !ok {
		t.Fatalf("want effects group present")
	}
}

func TestSanitizeDropsUnknownFields(t *testing.T) {
	table, err := LoadFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	raw := map[string]any{"opacity": 0.5, "future_field": "wat"}
	clean := table.Sanitize("effects", raw)
	if _, ok := clean["future_field"]; ok {
		t.Fatalf("want future_field dropped, got %+v", clean)
	}
	if clean["opacity"] != 0.5 {
		t.Fatalf("want opacity preserved, got %+v", clean)
	}
}

func TestSanitizeUnknownGroupPassesThrough(t *testing.T) {
	table, err := LoadFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	raw := map[string]any{"x": 1}
	if got := table.Sanitize("not_a_group", raw); got["x"] != 1 {
		t.Fatalf("want passthrough for unknown group, got %+v", got)
	}
}

func TestValidateValueRangeAndPattern(t *testing.T) {
	table, err := LoadFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if ok, reason := table.ValidateValue("effects", "opacity", 1.5); ok {
		t.Fatalf("want opacity=1.5 rejected, reason=%q", reason)
	}
	if ok, _ := table.ValidateValue("effects", "opacity", 0.5); !ok {
		t.Fatalf("want opacity=0.5 accepted")
	}
	if ok, _ := table.ValidateValue("chroma_key", "color", "#zz0000"); ok {
		t.Fatalf("want malformed hex color rejected")
	}
	if ok, _ := table.ValidateValue("chroma_key", "color", "#00ff00"); !ok {
		t.Fatalf("want well-formed hex color accepted")
	}
	if ok, _ := table.ValidateValue("effects", "unknown_field", "anything"); !ok {
		t.Fatalf("want unknown field name treated as no-op, not rejected")
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effects.yaml")
	doc := []byte(`
groups:
  - name: transform
    params:
      - name: x
        type: number
`)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := table.Get("transform"); !ok {
		t.Fatalf("want transform group present")
	}
	if len(table.List()) != 1 {
		t.Fatalf("want one group, got %d", len(table.List()))
	}
}

func TestLoadRejectsDuplicateGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effects.yaml")
	doc := []byte(`
groups:
  - name: transform
    params: []
  - name: transform
    params: []
`)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("want duplicate group rejected")
	}
}
