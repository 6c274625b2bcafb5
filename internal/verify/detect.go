package verify

import (
	"os"
	"path/filepath"
)

// Plan is the pair of shell commands used to check a workspace.
type Plan struct {
	Kind    string
	Install string
	Test    string
}

// Detect picks the commands for the project at dir. Explicit commands win
// over detection. ok is false when the project declares no way to test it.
func Detect(dir, install, test string) (Plan, bool) {
	if test != "" {
		return Plan{Kind: "custom", Install: install, Test: test}, true
	}

	switch {
	case fileExists(filepath.Join(dir, "package.json")):
		return Plan{Kind: "npm", Install: orDefault(install, "npm install"), Test: "npm test"}, true
	case fileExists(filepath.Join(dir, "go.mod")):
		return Plan{Kind: "go", Install: orDefault(install, "go mod download"), Test: "go test ./..."}, true
	}
	return Plan{}, false
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
