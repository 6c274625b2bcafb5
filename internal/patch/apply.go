package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
)

// ErrApplyExhausted is returned when every apply strategy failed.
var ErrApplyExhausted = errors.New("patch could not be applied")

// Strategy is one way of running git apply.
type Strategy struct {
	Name string
	Args []string

	// Partial strategies may leave some hunks unapplied, recorded in .rej files.
	Partial bool
}

// DefaultStrategies is the fallback ladder, most faithful first.
var DefaultStrategies = []Strategy{
	{Name: "standard", Args: []string{"--ignore-space-change", "--ignore-whitespace"}},
	{Name: "context-1", Args: []string{"--ignore-space-change", "--ignore-whitespace", "-C1"}},
	{Name: "context-0", Args: []string{"--ignore-space-change", "--ignore-whitespace", "-C0"}},
	{Name: "reject", Args: []string{"--reject", "--ignore-space-change", "--ignore-whitespace"}, Partial: true},
}

// ApplyResult records how a patch was applied.
type ApplyResult struct {
	Strategy  string
	Attempted []string
	// Rejects lists .rej files left by a partial application, relative to the tree root.
	Rejects []string
}

// ApplyError carries the patch text when no strategy succeeded so the
// caller can show it.
type ApplyError struct {
	Patch     string
	Attempted []string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s (tried %s): %v", ErrApplyExhausted, strings.Join(e.Attempted, ", "), e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

func (e *ApplyError) Is(target error) bool { return target == ErrApplyExhausted }

// Applier applies patches with a fixed strategy ladder.
type Applier struct {
	Strategies []Strategy
}

// NewApplier returns an Applier using DefaultStrategies.
func NewApplier() *Applier {
	return &Applier{Strategies: DefaultStrategies}
}

// Apply applies the patch file at patchPath to the tree at dir, trying each
// strategy in order and stopping at the first that succeeds.
func (a *Applier) Apply(ctx context.Context, dir, patchPath string) (*ApplyResult, error) {
	log := clog.FromContext(ctx)

	original, err := os.ReadFile(patchPath)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	target := patchPath
	if anchored := anchorWhitespace(dir, string(original)); anchored != string(original) {
		tmp, err := writeTempPatch(anchored)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		target = tmp
		log.Debug("matched patch context to trailing whitespace in the tree")
	}

	result := &ApplyResult{}
	var lastErr error

	for _, s := range a.Strategies {
		result.Attempted = append(result.Attempted, s.Name)

		var before map[string]bool
		if s.Partial {
			before = findRejects(dir)
		}

		args := append([]string{"apply"}, s.Args...)
		args = append(args, target)
		_, stderr, err := runGit(ctx, dir, args...)
		if err == nil {
			result.Strategy = s.Name
			log.Info("patch applied", "strategy", s.Name)
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("applying patch: %w", ctxErr)
		}

		if s.Partial {
			if rejects := newRejects(before, findRejects(dir)); len(rejects) > 0 && appliedSome(dir, target, rejects) {
				result.Strategy = s.Name
				result.Rejects = rejects
				log.Warn("patch applied partially", "strategy", s.Name, "rejects", rejects)
				return result, nil
			}
		}

		lastErr = fmt.Errorf("%s: %w: %s", s.Name, err, strings.TrimSpace(stderr))
		log.Debug("apply strategy failed", "strategy", s.Name, "error", lastErr)
	}

	return nil, &ApplyError{
		Patch:     string(original),
		Attempted: result.Attempted,
		Err:       lastErr,
	}
}

// writeTempPatch stores text outside any work tree so that it can never be
// committed.
func writeTempPatch(text string) (string, error) {
	tmp, err := os.CreateTemp("", "autofix-apply-*.diff")
	if err != nil {
		return "", fmt.Errorf("creating temp patch: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing temp patch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing temp patch: %w", err)
	}
	return tmp.Name(), nil
}

// findRejects returns the .rej files under dir, relative to dir.
func findRejects(dir string) map[string]bool {
	found := make(map[string]bool)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".rej") {
			if rel, err := filepath.Rel(dir, path); err == nil {
				found[filepath.ToSlash(rel)] = true
			}
		}
		return nil
	})
	return found
}

// appliedSome reports whether fewer hunks were rejected than the patch holds,
// meaning the tree did change.
func appliedSome(dir, patchPath string, rejects []string) bool {
	data, err := os.ReadFile(patchPath)
	if err != nil {
		return false
	}
	total := countHunks(string(data))

	rejected := 0
	for _, r := range rejects {
		rej, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(r)))
		if err != nil {
			continue
		}
		rejected += countHunks(string(rej))
	}
	return rejected < total
}

func countHunks(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "@@ ") {
			n++
		}
	}
	return n
}

func newRejects(before, after map[string]bool) []string {
	var out []string
	for p := range after {
		if !before[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
