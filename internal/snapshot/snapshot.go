// Package snapshot captures the text files of a repository as the model sees
// them.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// File is one repository file, addressed by its slash-separated path
// relative to the snapshot root.
type File struct {
	Path    string
	Content string
}

// Snapshot is an ordered, read-only view of a repository's text files.
type Snapshot struct {
	Files []File
}

// Options selects what Take includes.
type Options struct {
	// Extensions is the allow-list of file extensions, including the dot.
	Extensions []string
	// ExcludeDirs are directory names that are never entered.
	ExcludeDirs []string
	// ExcludeFiles are file names that are never included.
	ExcludeFiles []string
}

// Take returns every allow-listed text file under root, sorted by path.
// An empty tree yields an empty snapshot.
func Take(root string, opts Options) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot root %s is not a directory", root)
	}

	exts := toSet(opts.Extensions, strings.ToLower)
	skipDirs := toSet(opts.ExcludeDirs, nil)
	skipFiles := toSet(opts.ExcludeFiles, nil)

	snap := &Snapshot{}
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", dir, err)
		}

		for _, e := range entries {
			name := e.Name()
			full := filepath.Join(dir, name)

			switch {
			case e.IsDir():
				if _, skip := skipDirs[name]; !skip {
					stack = append(stack, full)
				}
				continue
			case !e.Type().IsRegular():
				// symlinks, sockets and devices
				continue
			}

			if _, skip := skipFiles[name]; skip {
				continue
			}
			if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
				continue
			}

			data, err := os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", full, err)
			}
			if !utf8.Valid(data) {
				slog.Debug("skipping non-UTF-8 file", "path", full)
				continue
			}

			rel, err := filepath.Rel(root, full)
			if err != nil {
				return nil, fmt.Errorf("relativizing %s: %w", full, err)
			}
			snap.Files = append(snap.Files, File{
				Path:    filepath.ToSlash(rel),
				Content: string(data),
			})
		}
	}

	sort.Slice(snap.Files, func(i, j int) bool {
		return snap.Files[i].Path < snap.Files[j].Path
	})
	return snap, nil
}

// Render serializes the snapshot for inclusion in a prompt.
func (s *Snapshot) Render() string {
	parts := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		parts = append(parts, fmt.Sprintf("File: %s\nContent:\n%s\n", f.Path, f.Content))
	}
	return strings.Join(parts, "\n---\n")
}

// Paths returns the snapshot's file paths in order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// Bytes returns the total size of all captured content.
func (s *Snapshot) Bytes() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Content)
	}
	return n
}

func toSet(items []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if norm != nil {
			it = norm(it)
		}
		set[it] = struct{}{}
	}
	return set
}
