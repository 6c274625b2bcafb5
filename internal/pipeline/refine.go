package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"

	"github.com/alanmeadows/autofix/internal/github"
	"github.com/alanmeadows/autofix/internal/llm"
	"github.com/alanmeadows/autofix/internal/patch"
	"github.com/alanmeadows/autofix/internal/prompts"
	"github.com/alanmeadows/autofix/internal/snapshot"
	"github.com/alanmeadows/autofix/internal/verify"
)

// refiner returns the test-failure handler: it shows the model the failing
// output and the current tree, then applies the corrective patch it gets
// back with the same strategy ladder as the first fix.
func (r *Runner) refiner(issue *github.Issue, gen *llm.Generator) verify.Refiner {
	return verify.RefinerFunc(func(ctx context.Context, dir, testOutput string) error {
		log := clog.FromContext(ctx)
		r.progress.Info("Asking the model to fix the failing tests")

		snap, err := snapshot.Take(dir, r.snapshotOptions())
		if err != nil {
			return fmt.Errorf("reading repository: %w", err)
		}
		prompt, err := r.prompts.Execute(prompts.TestFailure, map[string]string{
			"ISSUE_BODY":  issue.Body,
			"TEST_OUTPUT": testOutput,
			"CODEBASE":    snap.Render(),
		})
		if err != nil {
			return err
		}

		resp, err := gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		p, err := patch.Synthesize(ctx, dir, resp.Files)
		if err != nil {
			return err
		}

		// Outside the workspace so it is never committed.
		f, err := os.CreateTemp("", "autofix-refine-*.diff")
		if err != nil {
			return fmt.Errorf("creating refinement patch: %w", err)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(p.String()); err != nil {
			f.Close()
			return fmt.Errorf("writing refinement patch: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing refinement patch: %w", err)
		}

		applied, err := r.applier.Apply(ctx, dir, f.Name())
		if err != nil {
			return err
		}
		log.Info("applied refinement", "strategy", applied.Strategy, "files", p.Paths())
		r.progress.Success(fmt.Sprintf("Applied test fix to %d files", len(p.Fragments)))
		return nil
	})
}
