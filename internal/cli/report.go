package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/autofix/internal/pipeline"
)

var reportWorkspace string

func init() {
	reportCmd.Flags().StringVar(&reportWorkspace, "workspace", "", "Workspace directory (overrides workspace.dir)")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the report of the last run",
	Long:  `Show the run report autofix leaves in the workspace after each run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		dir := cfg.Workspace.Dir
		if reportWorkspace != "" {
			dir = reportWorkspace
		}

		report, err := pipeline.ReadReport(filepath.Join(dir, cfg.Workspace.ReportFile))
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func printReport(w io.Writer, r *pipeline.Report) {
	labelStyle := lipgloss.NewStyle().Bold(true)
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	if r.Status != pipeline.StatusSucceeded {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}

	fmt.Fprintf(w, "%s #%d %s\n", labelStyle.Render("Issue:"), r.Issue, r.Title)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("URL:"), r.IssueURL)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Status:"), statusStyle.Render(r.Status))
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error:"), r.Error)
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Branch:"), r.Branch)
	fmt.Fprintf(w, "%s %t\n", labelStyle.Render("Dry run:"), r.DryRun)
	if r.Patch != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Patch:"), r.Patch)
	}
	if len(r.Files) > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Files:"), strings.Join(r.Files, ", "))
	}
	if r.Strategy != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Applied with:"), r.Strategy)
	}
	if len(r.Rejects) > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Rejects:"), strings.Join(r.Rejects, ", "))
	}
	if r.TestsRun {
		fmt.Fprintf(w, "%s %s (%d attempts)\n", labelStyle.Render("Tests:"), passFail(r.TestsPassed), r.TestAttempts)
	}
	if r.Commit != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Commit:"), r.Commit)
	}
	if r.PRURL != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Pull request:"), r.PRURL)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Warning:"), warning)
	}
	if !r.Started.IsZero() && !r.Finished.IsZero() {
		fmt.Fprintf(w, "%s %s (%s)\n", labelStyle.Render("Started:"), r.Started.Format("2006-01-02 15:04:05"), r.Finished.Sub(r.Started).Round(time.Second))
	}
}
