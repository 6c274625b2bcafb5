package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/alanmeadows/autofix/internal/github"
	"github.com/alanmeadows/autofix/internal/store"
)

// Result describes what a run did.
type Result struct {
	Issue     github.Issue
	Branch    string
	PatchPath string
	Files     []string
	DryRun    bool

	Strategy string
	Rejects  []string

	TestsRun     bool
	TestsPassed  bool
	TestAttempts int

	Commit string
	Pushed bool
	PRURL  string

	Warnings []string

	Started  time.Time
	Finished time.Time
}

// Run statuses recorded in the report.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// reportMatter is the YAML frontmatter of a run report. Times are stored as
// RFC 3339 strings in UTC.
type reportMatter struct {
	Issue        int      `yaml:"issue"`
	IssueURL     string   `yaml:"issue_url"`
	Title        string   `yaml:"title"`
	Branch       string   `yaml:"branch"`
	Status       string   `yaml:"status"`
	DryRun       bool     `yaml:"dry_run"`
	Patch        string   `yaml:"patch"`
	Files        []string `yaml:"files"`
	Strategy     string   `yaml:"strategy"`
	Rejects      []string `yaml:"rejects"`
	TestsRun     bool     `yaml:"tests_run"`
	TestsPassed  bool     `yaml:"tests_passed"`
	TestAttempts int      `yaml:"test_attempts"`
	Commit       string   `yaml:"commit"`
	PRURL        string   `yaml:"pr_url"`
	Warnings     []string `yaml:"warnings"`
	Started      string   `yaml:"started"`
	Finished     string   `yaml:"finished"`
	Error        string   `yaml:"error,omitempty"`
}

// writeReport records the run next to the patch. Failure to write it is
// logged, never returned.
func (r *Runner) writeReport(ctx context.Context, path string, result *Result, runErr error) {
	matter, body := reportDocument(result, runErr)
	if err := store.WriteDocument(path, matter, body); err != nil {
		clog.FromContext(ctx).Warn("writing run report", "path", path, "error", err)
	}
}

func reportDocument(result *Result, runErr error) (*reportMatter, string) {
	matter := &reportMatter{
		Issue:        result.Issue.Number,
		IssueURL:     result.Issue.URL,
		Title:        result.Issue.Title,
		Branch:       result.Branch,
		Status:       StatusSucceeded,
		DryRun:       result.DryRun,
		Patch:        result.PatchPath,
		Files:        nonNil(result.Files),
		Strategy:     result.Strategy,
		Rejects:      nonNil(result.Rejects),
		TestsRun:     result.TestsRun,
		TestsPassed:  result.TestsPassed,
		TestAttempts: result.TestAttempts,
		Commit:       result.Commit,
		PRURL:        result.PRURL,
		Warnings:     nonNil(result.Warnings),
		Started:      formatTime(result.Started),
		Finished:     formatTime(result.Finished),
	}
	if runErr != nil {
		matter.Status = StatusFailed
		matter.Error = runErr.Error()
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# Issue #%d: %s\n\n", result.Issue.Number, result.Issue.Title)
	if result.Issue.Body != "" {
		body.WriteString(result.Issue.Body)
		body.WriteString("\n")
	}

	return matter, body.String()
}

// Report is a run report read back from disk.
type Report struct {
	Issue        int
	IssueURL     string
	Title        string
	Branch       string
	Status       string
	DryRun       bool
	Patch        string
	Files        []string
	Strategy     string
	Rejects      []string
	TestsRun     bool
	TestsPassed  bool
	TestAttempts int
	Commit       string
	PRURL        string
	Warnings     []string
	Started      time.Time
	Finished     time.Time
	Error        string
	Body         string
}

// ReadReport loads the report written by a previous run.
func ReadReport(path string) (*Report, error) {
	var m reportMatter
	body, err := store.ReadDocument(path, &m)
	if err != nil {
		return nil, err
	}
	if m.Issue == 0 || m.Status == "" {
		return nil, fmt.Errorf("%s is not a run report", path)
	}

	return &Report{
		Issue:        m.Issue,
		IssueURL:     m.IssueURL,
		Title:        m.Title,
		Branch:       m.Branch,
		Status:       m.Status,
		DryRun:       m.DryRun,
		Patch:        m.Patch,
		Files:        m.Files,
		Strategy:     m.Strategy,
		Rejects:      m.Rejects,
		TestsRun:     m.TestsRun,
		TestsPassed:  m.TestsPassed,
		TestAttempts: m.TestAttempts,
		Commit:       m.Commit,
		PRURL:        m.PRURL,
		Warnings:     m.Warnings,
		Started:      parseTime(m.Started),
		Finished:     parseTime(m.Finished),
		Error:        m.Error,
		Body:         body,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime returns the zero time for empty or malformed values.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
