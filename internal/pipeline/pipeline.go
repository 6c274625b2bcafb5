// Package pipeline runs one issue-to-pull-request fix: fetch the issue,
// clone the repository, ask the model for a change, turn it into a patch,
// apply and test it, then publish the branch.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/alanmeadows/autofix/internal/config"
	"github.com/alanmeadows/autofix/internal/github"
	"github.com/alanmeadows/autofix/internal/llm"
	"github.com/alanmeadows/autofix/internal/logging"
	"github.com/alanmeadows/autofix/internal/patch"
	"github.com/alanmeadows/autofix/internal/progress"
	"github.com/alanmeadows/autofix/internal/prompts"
	"github.com/alanmeadows/autofix/internal/snapshot"
	"github.com/alanmeadows/autofix/internal/store"
	"github.com/alanmeadows/autofix/internal/verify"
	"github.com/alanmeadows/autofix/internal/workspace"
)

var (
	// ErrInvalidInput is returned for a malformed issue or repository URL,
	// or missing credentials.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetch is returned when the issue or the repository cannot be read.
	ErrFetch = errors.New("could not fetch issue or repository")

	// ErrPush is returned when the fix branch cannot be committed or pushed.
	ErrPush = errors.New("could not push fix branch")
)

// defaultBaseBranch is used when no base is configured and the repository's
// default branch cannot be resolved.
const defaultBaseBranch = "main"

// GitHub is the subset of the GitHub API a run needs.
type GitHub interface {
	FetchIssue(ctx context.Context, ref github.IssueRef) (*github.Issue, error)
	CreatePullRequest(ctx context.Context, owner, repo string, pr github.PullRequest) (string, error)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// Options select what a run does. Push implies Apply.
type Options struct {
	IssueURL string
	RepoURL  string
	Apply    bool
	Push     bool
}

// Deps are the collaborators of a Runner. Nil fields are built from the
// configuration.
type Deps struct {
	GitHub   GitHub
	Model    llm.Client
	Prompts  *prompts.Loader
	Progress *progress.Stream
}

// Runner executes fix runs.
type Runner struct {
	cfg      *config.Config
	github   GitHub
	model    llm.Client
	prompts  *prompts.Loader
	applier  *patch.Applier
	progress *progress.Stream
}

// New creates a Runner.
func New(cfg *config.Config, deps Deps) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrInvalidInput)
	}

	r := &Runner{
		cfg:      cfg,
		github:   deps.GitHub,
		model:    deps.Model,
		prompts:  deps.Prompts,
		applier:  patch.NewApplier(),
		progress: deps.Progress,
	}

	if r.github == nil {
		client, err := github.NewClient(github.Options{
			Token:      cfg.GitHub.Token,
			APIURL:     cfg.GitHub.APIURL,
			GraphQLURL: cfg.GitHub.GraphQLURL,
		})
		if err != nil {
			return nil, err
		}
		r.github = client
	}
	if r.model == nil {
		settings, err := llm.SettingsFromConfig(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		r.model = llm.NewClient(settings)
	}
	if r.prompts == nil {
		dir := cfg.Prompts.Dir
		if dir == "" {
			dir = config.UserPromptsDir()
		}
		r.prompts = prompts.NewLoader(dir)
	}
	return r, nil
}

// Run performs one fix run. Fatal conditions are returned as errors; test
// failures and pull request failures are recorded as warnings in the Result.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Push {
		opts.Apply = true
	}

	ref, err := github.ParseIssueURL(opts.IssueURL, github.WebHost(r.cfg.GitHub.APIURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if opts.RepoURL == "" {
		return nil, fmt.Errorf("%w: repository URL is required", ErrInvalidInput)
	}
	if r.cfg.GitHub.Token == "" {
		return nil, fmt.Errorf("%w: a GitHub token is required", ErrInvalidInput)
	}

	ctx = logging.With(ctx, "issue", ref.Number, "repo", ref.Owner+"/"+ref.Repo)
	log := clog.FromContext(ctx)

	r.progress.Info(fmt.Sprintf("Fetching issue #%d from %s/%s", ref.Number, ref.Owner, ref.Repo))
	issue, err := r.github.FetchIssue(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	log.Info("fetched issue", "title", issue.Title)
	r.progress.Success(fmt.Sprintf("Fetched issue #%d: %s", issue.Number, issue.Title))

	branch, err := branchName(r.cfg.GitHub.BranchTemplate, issue.Number)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	dir, err := filepath.Abs(r.cfg.Workspace.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("creating workspace parent: %w", err)
	}

	result := &Result{
		Issue:  *issue,
		Branch: branch,
		DryRun: !opts.Apply,
	}

	ctx = logging.With(ctx, "branch", branch)
	err = store.WithLock(ctx, dir, r.cfg.Workspace.ParseLockTimeout(), func() error {
		result.Started = time.Now()
		runErr := r.run(ctx, dir, issue, opts, result)
		result.Finished = time.Now()
		if store.Exists(dir) {
			r.writeReport(ctx, filepath.Join(dir, r.cfg.Workspace.ReportFile), result, runErr)
		}
		return runErr
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, dir string, issue *github.Issue, opts Options, result *Result) error {
	log := clog.FromContext(ctx)

	r.progress.Info(fmt.Sprintf("Cloning %s", opts.RepoURL))
	ws, err := workspace.Prepare(ctx, workspace.Options{
		Dir:         dir,
		RepoURL:     opts.RepoURL,
		Branch:      result.Branch,
		Token:       r.cfg.GitHub.Token,
		InsteadOf:   r.cfg.Workspace.InsteadOf,
		AuthorName:  r.cfg.GitHub.CommitAuthor,
		AuthorEmail: r.cfg.GitHub.CommitEmail,
		Exclude:     r.artifacts(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	r.progress.Success(fmt.Sprintf("Created branch %s", ws.Branch))

	snap, err := snapshot.Take(ws.Dir, r.snapshotOptions())
	if err != nil {
		return fmt.Errorf("reading repository: %w", err)
	}
	log.Info("captured snapshot", "files", len(snap.Files), "bytes", snap.Bytes())

	prompt, err := r.prompts.Execute(prompts.Fix, map[string]string{
		"ISSUE_BODY": issue.Body,
		"CODEBASE":   snap.Render(),
	})
	if err != nil {
		return err
	}

	gen := llm.NewGenerator(r.model, r.cfg.Model.MaxAttempts, r.cfg.Model.ParseRetryDelay())
	r.progress.Info(fmt.Sprintf("Asking the model for a fix (%d files in context)", len(snap.Files)))
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	p, err := patch.Synthesize(ctx, ws.Dir, resp.Files)
	if err != nil {
		return err
	}

	patchPath := filepath.Join(ws.Dir, r.cfg.Workspace.PatchFile)
	if err := store.WriteFile(patchPath, []byte(p.String()), 0644); err != nil {
		return fmt.Errorf("writing patch: %w", err)
	}
	result.PatchPath = patchPath
	result.Files = p.Paths()
	logSummary(ctx, p.String())
	r.progress.Success(fmt.Sprintf("Patch generated at %s (%d files)", patchPath, len(p.Fragments)))

	if !opts.Apply {
		r.progress.Info("Dry run finished, patch not applied")
		return nil
	}

	r.progress.Info("Applying patch")
	applied, err := r.applier.Apply(ctx, ws.Dir, patchPath)
	if err != nil {
		return err
	}
	result.Strategy = applied.Strategy
	result.Rejects = applied.Rejects
	if len(applied.Rejects) > 0 {
		r.warn(result, fmt.Sprintf("patch applied partially, rejected hunks in %v", applied.Rejects))
	} else {
		r.progress.Success(fmt.Sprintf("Patch applied (%s)", applied.Strategy))
	}
	if changed, err := ws.Changes(); err != nil {
		log.Warn("listing working tree changes", "error", err)
	} else {
		log.Info("working tree changed", "files", changed)
	}

	if err := r.test(ctx, ws.Dir, issue, gen, result); err != nil {
		return err
	}

	if opts.Push {
		return r.publish(ctx, ws, issue, result)
	}
	return nil
}

// test runs the project's tests with model refinement between attempts.
func (r *Runner) test(ctx context.Context, dir string, issue *github.Issue, gen *llm.Generator, result *Result) error {
	if !r.cfg.Tests.IsEnabled() {
		return nil
	}
	plan, ok := verify.Detect(dir, r.cfg.Tests.InstallCommand, r.cfg.Tests.TestCommand)
	if !ok {
		clog.FromContext(ctx).Debug("no test command detected")
		return nil
	}

	r.progress.Info(fmt.Sprintf("Running tests (%s)", plan.Test))
	loop := verify.NewLoop(verify.Options{
		MaxAttempts: r.cfg.Tests.MaxAttempts,
		Timeout:     r.cfg.Tests.ParseTimeout(),
		Refiner:     r.refiner(issue, gen),
	})
	outcome, err := loop.Run(ctx, dir, plan)
	if err != nil {
		return err
	}

	result.TestsRun = outcome.Ran
	result.TestsPassed = outcome.Passed
	result.TestAttempts = outcome.Attempts
	if outcome.Passed {
		r.progress.Success("Tests passed")
		return nil
	}
	r.warn(result, fmt.Sprintf("%s after %d attempts, continuing", verify.ErrTestsFailed, outcome.Attempts))
	return nil
}

// publish commits, force-pushes and opens the pull request. Only commit and
// push failures are fatal.
func (r *Runner) publish(ctx context.Context, ws *workspace.Workspace, issue *github.Issue, result *Result) error {
	log := clog.FromContext(ctx)
	message := fmt.Sprintf("fix: resolve issue #%d", issue.Number)

	r.progress.Info(fmt.Sprintf("Pushing branch %s", ws.Branch))
	commit, err := ws.CommitAll(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPush, err)
	}
	result.Commit = commit
	if err := ws.ForcePush(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPush, err)
	}
	result.Pushed = true
	r.progress.Success(fmt.Sprintf("Pushed %s", ws.Branch))

	body, err := r.prompts.Execute(prompts.PRBody, map[string]string{
		"ISSUE_NUMBER": fmt.Sprint(issue.Number),
	})
	if err != nil {
		return err
	}

	base := r.baseBranch(ctx, issue)
	r.progress.Info("Creating pull request")
	url, err := r.github.CreatePullRequest(ctx, issue.Owner, issue.Repo, github.PullRequest{
		Title: message,
		Body:  body,
		Head:  ws.Branch,
		Base:  base,
	})
	if err != nil {
		log.Warn("pull request creation failed", "error", err)
		r.warn(result, fmt.Sprintf("pull request not created: %v", err))
		return nil
	}
	result.PRURL = url
	r.progress.Success(fmt.Sprintf("Pull request created: %s", url))
	return nil
}

func (r *Runner) baseBranch(ctx context.Context, issue *github.Issue) string {
	if r.cfg.GitHub.BaseBranch != "" {
		return r.cfg.GitHub.BaseBranch
	}
	base, err := r.github.DefaultBranch(ctx, issue.Owner, issue.Repo)
	if err != nil {
		clog.FromContext(ctx).Warn("falling back to default base branch", "base", defaultBaseBranch, "error", err)
		return defaultBaseBranch
	}
	return base
}

func (r *Runner) warn(result *Result, msg string) {
	result.Warnings = append(result.Warnings, msg)
	r.progress.Warn(msg)
}

// artifacts are files the run writes into the workspace that must never be
// committed or sent to the model.
func (r *Runner) artifacts() []string {
	return []string{r.cfg.Workspace.PatchFile, r.cfg.Workspace.ReportFile, "*.rej", "*.orig"}
}

func (r *Runner) snapshotOptions() snapshot.Options {
	excludeFiles := append([]string{}, r.cfg.Snapshot.ExcludeFiles...)
	excludeFiles = append(excludeFiles, r.cfg.Workspace.PatchFile, r.cfg.Workspace.ReportFile)
	return snapshot.Options{
		Extensions:   r.cfg.Snapshot.Extensions,
		ExcludeDirs:  r.cfg.Snapshot.ExcludeDirs,
		ExcludeFiles: excludeFiles,
	}
}

// branchName renders the branch template for an issue number.
func branchName(tmpl string, number int) (string, error) {
	if tmpl == "" {
		tmpl = "fix/issue-{{.Number}}-ai"
	}
	t, err := template.New("branch").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing branch template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ Number int }{number}); err != nil {
		return "", fmt.Errorf("rendering branch template: %w", err)
	}
	return buf.String(), nil
}

func logSummary(ctx context.Context, text string) {
	log := clog.FromContext(ctx)
	files, err := patch.Summarize(text)
	if err != nil {
		log.Debug("could not summarize patch", "error", err)
		return
	}
	for _, f := range files {
		log.Info("patch file", "path", f.Path, "created", f.Created, "added", f.Added, "removed", f.Removed)
	}
}
