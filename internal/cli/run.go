package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/autofix/internal/llm"
	"github.com/alanmeadows/autofix/internal/patch"
	"github.com/alanmeadows/autofix/internal/pipeline"
	"github.com/alanmeadows/autofix/internal/progress"
)

var (
	runIssue       string
	runRepo        string
	runApply       bool
	runPush        bool
	runModelKey    string
	runGitHubToken string
	runWorkspace   string
	runEvents      string
)

func init() {
	runCmd.Flags().StringVar(&runIssue, "issue", "", "GitHub issue URL (https://github.com/<owner>/<repo>/issues/<n>)")
	runCmd.Flags().StringVar(&runRepo, "repo", "", "Repository clone URL")
	runCmd.Flags().BoolVar(&runApply, "apply", false, "Apply the patch and run tests (default is a dry run)")
	runCmd.Flags().BoolVar(&runPush, "push", false, "Commit, push the fix branch and open a pull request (implies --apply)")
	runCmd.Flags().StringVar(&runModelKey, "model-key", "", "Model API key (overrides OPENAI_API_KEY)")
	runCmd.Flags().StringVar(&runGitHubToken, "github-token", "", "GitHub token (overrides GITHUB_TOKEN)")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "Workspace directory (overrides workspace.dir)")
	runCmd.Flags().StringVar(&runEvents, "events", "text", "Progress output: text (stderr) or json (stdout)")
	_ = runCmd.MarkFlagRequired("issue")
	_ = runCmd.MarkFlagRequired("repo")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fix a GitHub issue",
	Long: `Fetch an issue, clone the repository into the workspace, ask the model for a
fix and write it to the workspace as patch.diff.

Without --apply the run stops once the patch is written. With --apply the patch
is applied and the project's tests run, with one model refinement between
failed attempts. With --push the branch is committed, force-pushed and a pull
request is opened.`,
	Example: `  autofix run --issue https://github.com/acme/widgets/issues/7 --repo https://github.com/acme/widgets
  autofix run --issue https://github.com/acme/widgets/issues/7 --repo https://github.com/acme/widgets --push`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if runModelKey != "" {
			cfg.Model.APIKey = runModelKey
		}
		if runGitHubToken != "" {
			cfg.GitHub.Token = runGitHubToken
		}
		if runWorkspace != "" {
			cfg.Workspace.Dir = runWorkspace
		}

		var renderer progress.Renderer
		switch runEvents {
		case "text":
			renderer = progress.NewTextRenderer(cmd.ErrOrStderr())
		case "json":
			renderer = progress.NewJSONRenderer(cmd.OutOrStdout())
		default:
			return fmt.Errorf("invalid --events value %q: expected text or json", runEvents)
		}

		stream := progress.NewStream(cfg.Progress.Buffer)
		runner, err := pipeline.New(cfg, pipeline.Deps{Progress: stream})
		if err != nil {
			return err
		}

		done := progress.Consume(stream.Events(), renderer)
		result, runErr := runner.Run(ctx, pipeline.Options{
			IssueURL: runIssue,
			RepoURL:  runRepo,
			Apply:    runApply,
			Push:     runPush,
		})
		stream.Finish(runErr)
		stream.Close()
		<-done

		if runErr != nil {
			printDiagnostics(cmd.ErrOrStderr(), runErr)
			return runErr
		}
		if runEvents == "text" {
			printResult(cmd.OutOrStdout(), result)
		}
		return nil
	},
}

// printDiagnostics dumps what a fatal error carries: the model's last reply
// or the patch that would not apply.
func printDiagnostics(w io.Writer, err error) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	var exhausted *llm.ExhaustedError
	if errors.As(err, &exhausted) && exhausted.Raw != "" {
		fmt.Fprintln(w, headerStyle.Render("--- Last model reply ---"))
		fmt.Fprintln(w, exhausted.Raw)
		fmt.Fprintln(w, headerStyle.Render("------------------------"))
	}

	var applyErr *patch.ApplyError
	if errors.As(err, &applyErr) && applyErr.Patch != "" {
		fmt.Fprintln(w, headerStyle.Render("--- Patch Content ---"))
		fmt.Fprintln(w, strings.TrimRight(applyErr.Patch, "\n"))
		fmt.Fprintln(w, headerStyle.Render("---------------------"))
	}
}

// printResult writes a short summary of a finished run.
func printResult(w io.Writer, r *pipeline.Result) {
	labelStyle := lipgloss.NewStyle().Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	fmt.Fprintf(w, "%s #%d %s\n", labelStyle.Render("Issue:"), r.Issue.Number, r.Issue.Title)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Branch:"), r.Branch)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Patch:"), r.PatchPath)
	if r.DryRun {
		fmt.Fprintf(w, "%s dry run, patch not applied\n", labelStyle.Render("Mode:"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Applied with:"), r.Strategy)
	if r.TestsRun {
		fmt.Fprintf(w, "%s %s (%d attempts)\n", labelStyle.Render("Tests:"), passFail(r.TestsPassed), r.TestAttempts)
	}
	if r.Pushed {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Commit:"), r.Commit)
	}
	if r.PRURL != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Pull request:"), r.PRURL)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintln(w, warnStyle.Render("! "+warning))
	}
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
