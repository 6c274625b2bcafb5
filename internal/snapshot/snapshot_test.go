package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOptions = Options{
	Extensions:   []string{".js", ".ts", ".md", ".json", ".html", ".css", ".txt"},
	ExcludeDirs:  []string{".git", "node_modules"},
	ExcludeFiles: []string{"package-lock.json", "patch.diff"},
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestTakeFiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/index.js", "console.log('hi')")
	writeFile(t, root, "README.md", "# widgets")
	writeFile(t, root, "src/lib/util.ts", "export const x = 1")
	writeFile(t, root, "package.json", `{"name":"widgets"}`)
	writeFile(t, root, "package-lock.json", "{}")
	writeFile(t, root, "patch.diff", "diff --git")
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "node_modules/left-pad/index.js", "module.exports = 1")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, ".git/notes.txt", "internal")
	writeFile(t, root, "deep/node_modules/x.js", "nested dependency")

	snap, err := Take(root, defaultOptions)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"README.md",
		"package.json",
		"src/index.js",
		"src/lib/util.ts",
	}, snap.Paths())
}

func TestTakeNeverReturnsExcludedSegmentsOrExtensions(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"a.js", "b.go", "c.py", "d/e.css", "d/.git/f.txt",
		"node_modules/g.json", "h/i/node_modules/j.md", "k.TXT",
	} {
		writeFile(t, root, rel, "content")
	}

	snap, err := Take(root, defaultOptions)
	require.NoError(t, err)

	allowed := map[string]bool{}
	for _, ext := range defaultOptions.Extensions {
		allowed[ext] = true
	}
	for _, p := range snap.Paths() {
		for _, seg := range strings.Split(p, "/") {
			assert.NotEqual(t, ".git", seg, p)
			assert.NotEqual(t, "node_modules", seg, p)
		}
		assert.True(t, allowed[strings.ToLower(filepath.Ext(p))], p)
	}
	assert.Contains(t, snap.Paths(), "k.TXT")
}

func TestTakeEmptyRepository(t *testing.T) {
	snap, err := Take(t.TempDir(), defaultOptions)
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
	assert.Equal(t, "", snap.Render())
}

func TestTakeSkipsBinaryContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.txt", "plain text")
	writeFile(t, root, "blob.txt", string([]byte{0xff, 0xfe, 0x00, 0x01}))

	snap, err := Take(root, defaultOptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.txt"}, snap.Paths())
}

func TestTakeMissingRoot(t *testing.T) {
	_, err := Take(filepath.Join(t.TempDir(), "nope"), defaultOptions)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	snap := &Snapshot{Files: []File{
		{Path: "a.js", Content: "one"},
		{Path: "b/c.md", Content: "two"},
	}}

	assert.Equal(t, "File: a.js\nContent:\none\n\n---\nFile: b/c.md\nContent:\ntwo\n", snap.Render())
	assert.Equal(t, 6, snap.Bytes())
}
