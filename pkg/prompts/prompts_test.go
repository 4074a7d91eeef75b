package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLibraryHasEveryTemplate(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if err := lib.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := len(lib.Loaded()); got != len(Names) {
		t.Errorf("loaded %d templates, want %d", got, len(Names))
	}
	if lib.Source() != "embedded" {
		t.Errorf("Source() = %q, want embedded", lib.Source())
	}
}

func TestRenderInjectsData(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	got, err := lib.Render(InputParser, map[string]any{
		"Categories": []string{"stealth", "combat"},
		"SkillName":  "Ashen Ledger",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "stealth, combat") {
		t.Errorf("categories not joined: %q", got)
	}
	if !strings.Contains(got, `"Ashen Ledger"`) {
		t.Errorf("skill name missing: %q", got)
	}

	got, err = lib.Render(Planner, map[string]any{"MinBeats": 3, "MaxBeats": 6})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "first chapter") {
		t.Error("starting zone rule rendered without a zone")
	}
	if !strings.Contains(got, "between 3 and 6 beats") {
		t.Errorf("beat bounds missing: %q", got)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestLoadOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "critic.md"), []byte("Custom critic {{.Threshold}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := lib.Render(Critic, map[string]any{"Threshold": 6})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Custom critic 6" {
		t.Errorf("override not applied: %q", got)
	}
	if !lib.Has(SceneWriter) {
		t.Error("embedded templates should remain when a dir overrides one")
	}
	if lib.Source() != dir {
		t.Errorf("Source() = %q, want %q", lib.Source(), dir)
	}
}

func TestLoadRejectsBadDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing dir")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "planner.md"), []byte("{{.Broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}
