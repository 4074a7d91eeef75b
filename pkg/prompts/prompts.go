// Package prompts loads the system prompt templates every pipeline node sends
// to the model and assembles the user half of each (system, user) pair.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var embedded embed.FS

// Template names. Each one is a markdown file under templates/.
const (
	InputParser = "input_parser"
	Planner     = "planner"
	Simulator   = "simulator"
	Writer      = "writer"
	SceneWriter = "scene_writer"
	Critic      = "critic"
	Identity    = "identity"
	Ledger      = "ledger"
	Narrator    = "narrator"
	Forge       = "forge"
	Summary     = "summary"
	Evolution   = "evolution"
	Growth      = "growth"
)

// Names lists every template the engine needs.
var Names = []string{
	InputParser, Planner, Simulator, Writer, SceneWriter, Critic,
	Identity, Ledger, Narrator, Forge, Summary, Evolution, Growth,
}

var funcs = template.FuncMap{
	"join": func(v any, sep string) string {
		switch xs := v.(type) {
		case []string:
			return strings.Join(xs, sep)
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	},
}

// Library holds parsed system prompt templates.
type Library struct {
	templates map[string]*template.Template
	source    string
}

// Default parses the embedded templates.
func Default() (*Library, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return parse(sub, "embedded")
}

// Load parses the embedded templates, then replaces any of them with a file
// of the same name found in dir. An empty dir means embedded only.
func Load(dir string) (*Library, error) {
	lib, err := Default()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return lib, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts dir %s is not a directory", dir)
	}
	override, err := parse(os.DirFS(dir), dir)
	if err != nil {
		return nil, err
	}
	for name, t := range override.templates {
		lib.templates[name] = t
	}
	lib.source = dir
	return lib, nil
}

func parse(fsys fs.FS, source string) (*Library, error) {
	paths, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, err
	}
	lib := &Library{templates: make(map[string]*template.Template, len(paths)), source: source}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".md")
		t, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		lib.templates[name] = t
	}
	return lib, nil
}

// Source reports where overrides came from, or "embedded".
func (l *Library) Source() string { return l.source }

// Has reports whether name is loaded.
func (l *Library) Has(name string) bool {
	_, ok := l.templates[name]
	return ok
}

// Loaded returns the sorted template names.
func (l *Library) Loaded() []string {
	out := make([]string, 0, len(l.templates))
	for name := range l.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render executes the named template with data.
func (l *Library) Render(name string, data any) (string, error) {
	t, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Validate checks every required template is present and renders with an
// empty data set.
func (l *Library) Validate() error {
	var missing []string
	for _, name := range Names {
		if !l.Has(name) {
			missing = append(missing, name)
			continue
		}
		if _, err := l.Render(name, nil); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing prompt templates: %s", strings.Join(missing, ", "))
	}
	return nil
}
