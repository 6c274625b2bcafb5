package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/template"
)

//go:embed *.md
var builtinFS embed.FS

// Template names.
const (
	Fix         = "fix.md"
	TestFailure = "test-failure.md"
	PRBody      = "pr-body.md"
)

// Loader resolves prompt templates, preferring files in OverrideDir over the
// embedded defaults.
type Loader struct {
	OverrideDir string
}

// NewLoader returns a Loader that checks overrideDir first. An empty
// overrideDir uses only the embedded templates.
func NewLoader(overrideDir string) *Loader {
	return &Loader{OverrideDir: overrideDir}
}

// Load returns the prompt template for the given name.
func (l *Loader) Load(name string) (*template.Template, error) {
	if l.OverrideDir != "" {
		userPath := filepath.Join(l.OverrideDir, name)
		if data, err := os.ReadFile(userPath); err == nil {
			tmpl, err := template.New(name).Parse(string(data))
			if err != nil {
				return nil, fmt.Errorf("parsing prompt override %s: %w", userPath, err)
			}
			return tmpl, nil
		}
	}

	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("loading prompt template %s: %w", name, err)
	}
	return template.New(name).Parse(string(data))
}

// Execute loads a template and executes it with the given data map.
// Values are substituted verbatim.
func (l *Loader) Execute(name string, data map[string]string) (string, error) {
	tmpl, err := l.Load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// List returns the names of all embedded prompt templates, and whether each
// is overridden.
func (l *Loader) List() ([]Entry, error) {
	entries, err := builtinFS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		entry := Entry{Name: e.Name()}
		if l.OverrideDir != "" {
			if _, err := os.Stat(filepath.Join(l.OverrideDir, e.Name())); err == nil {
				entry.Overridden = true
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Entry describes one prompt template.
type Entry struct {
	Name       string
	Overridden bool
}
