// Package patch turns proposed file contents into a unified diff and applies
// diffs to a working tree.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/alanmeadows/autofix/internal/llm"
)

// ErrNoChanges is returned when no proposed file produced a diff.
var ErrNoChanges = errors.New("no changes detected")

// Kind says whether a fragment edits an existing file or creates one.
type Kind string

const (
	KindModify Kind = "modify"
	KindCreate Kind = "create"
)

// Fragment is the diff for a single file.
type Fragment struct {
	Path string
	Kind Kind
	Text string
}

// Patch is an ordered set of fragments.
type Patch struct {
	Fragments []Fragment
}

// String renders the patch as one document with a blank line between
// fragments.
func (p *Patch) String() string {
	texts := make([]string, len(p.Fragments))
	for i, f := range p.Fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, "\n")
}

// Paths returns the files the patch touches, in order.
func (p *Patch) Paths() []string {
	paths := make([]string, len(p.Fragments))
	for i, f := range p.Fragments {
		paths[i] = f.Path
	}
	return paths
}

// Synthesize diffs every proposed file against the tree at root, in the
// order proposed. Files that would escape root, duplicates and files whose
// proposed content matches what is on disk are skipped. If nothing remains,
// ErrNoChanges is returned.
func Synthesize(ctx context.Context, root string, files []llm.ProposedFile) (*Patch, error) {
	log := clog.FromContext(ctx)
	patch := &Patch{}
	seen := make(map[string]bool, len(files))

	for _, f := range files {
		rel, ok := cleanPath(f.Path)
		if !ok {
			log.Warn("skipping proposed file outside repository", "path", f.Path)
			continue
		}
		if seen[rel] {
			log.Warn("skipping duplicate proposed file", "path", rel)
			continue
		}
		seen[rel] = true

		if !insideRoot(root, rel) {
			log.Warn("skipping proposed file reached through a link outside the repository", "path", rel)
			continue
		}

		full := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			patch.Fragments = append(patch.Fragments, Fragment{
				Path: rel,
				Kind: KindCreate,
				Text: newFileFragment(rel, f.Content),
			})
			continue
		case err != nil:
			log.Warn("skipping unreadable file", "path", rel, "error", err)
			continue
		case !info.Mode().IsRegular():
			log.Warn("skipping proposed file that is not a regular file", "path", rel)
			continue
		}

		text, err := diffExisting(ctx, root, rel, f.Content, info.Mode().Perm())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("synthesizing patch: %w", ctxErr)
			}
			log.Warn("skipping file that could not be diffed", "path", rel, "error", err)
			continue
		}
		if text == "" {
			log.Debug("proposed content matches existing file", "path", rel)
			continue
		}
		patch.Fragments = append(patch.Fragments, Fragment{
			Path: rel,
			Kind: KindModify,
			Text: text,
		})
	}

	if len(patch.Fragments) == 0 {
		return nil, ErrNoChanges
	}
	return patch, nil
}

// cleanPath normalizes a model-supplied path and rejects anything absolute,
// escaping the root, reaching into the git directory or needing quotes in a
// diff header.
func cleanPath(p string) (string, bool) {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") || quoted(p) {
		return "", false
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return "", false
	}
	return clean, true
}

// quoted reports whether git quotes p in diff headers even with
// core.quotePath disabled.
func quoted(p string) bool {
	for i := 0; i < len(p); i++ {
		if c := p[i]; c < 0x20 || c == '"' || c == '\\' || c == 0x7f {
			return true
		}
	}
	return false
}

// insideRoot reports whether rel, with every symlink in its existing
// ancestors resolved, stays under root.
func insideRoot(root, rel string) bool {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	dir := filepath.Dir(filepath.Join(root, filepath.FromSlash(rel)))
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	up, err := filepath.Rel(realRoot, realDir)
	if err != nil {
		return false
	}
	return up == "." || (up != ".." && !strings.HasPrefix(up, ".."+string(filepath.Separator)))
}

// diffExisting writes content beside the original file and diffs the two.
// The sibling temp file keeps the original's permission bits so that no mode
// change appears in the diff, and it is removed on every path out.
func diffExisting(ctx context.Context, root, rel, content string, perm fs.FileMode) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))

	tmp, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".autofix-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return "", fmt.Errorf("setting temp file mode: %w", err)
	}

	tmpRel, err := filepath.Rel(root, tmpPath)
	if err != nil {
		return "", err
	}
	tmpRel = filepath.ToSlash(tmpRel)

	stdout, stderr, err := runGit(ctx, root,
		"-c", "core.quotePath=false",
		"diff", "--no-index", "--no-color", "--no-ext-diff", "--ignore-space-at-eol",
		"--src-prefix=a/", "--dst-prefix=b/",
		"--", rel, tmpRel)
	switch {
	case err == nil:
		return "", nil
	case exitCode(err) == 1:
		// differences found
	default:
		return "", fmt.Errorf("git diff: %w: %s", err, strings.TrimSpace(stderr))
	}

	return retarget(stdout, rel), nil
}

// retarget rewrites the file header of a diff between rel and its scratch
// copy so that both sides name rel. Only lines before the first hunk are
// touched, and rename or copy metadata is dropped.
func retarget(diff, rel string) string {
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	inHeader := true
	for _, line := range lines {
		if inHeader {
			switch {
			case strings.HasPrefix(line, "@@"):
				inHeader = false
			case strings.HasPrefix(line, "diff --git "):
				fmt.Fprintf(&b, "diff --git a/%s b/%s\n", rel, rel)
				continue
			case strings.HasPrefix(line, "--- "):
				b.WriteString(headerLine("--- a/", rel))
				continue
			case strings.HasPrefix(line, "+++ "):
				b.WriteString(headerLine("+++ b/", rel))
				continue
			case strings.HasPrefix(line, "rename "), strings.HasPrefix(line, "copy "),
				strings.HasPrefix(line, "similarity index "), strings.HasPrefix(line, "dissimilarity index "):
				continue
			}
		}
		b.WriteString(line)
	}
	return b.String()
}

// headerLine renders a ---/+++ line. git terminates names containing a space
// with a tab.
func headerLine(prefix, path string) string {
	if strings.Contains(path, " ") {
		return prefix + path + "\t\n"
	}
	return prefix + path + "\n"
}

// newFileFragment builds a creation diff for content that has no file on
// disk yet.
func newFileFragment(path, content string) string {
	body := content
	trailingNewline := strings.HasSuffix(body, "\n")
	if trailingNewline {
		body = strings.TrimSuffix(body, "\n")
	}
	lines := strings.Split(body, "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("index 0000000..0000000\n")
	b.WriteString("--- /dev/null\n")
	b.WriteString(headerLine("+++ b/", path))
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, line := range lines {
		b.WriteString("+")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if !trailingNewline {
		b.WriteString("\\ No newline at end of file\n")
	}
	return b.String()
}
