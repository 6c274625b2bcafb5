package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/autofix/internal/config"
	"github.com/alanmeadows/autofix/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect prompt templates",
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt templates and whether they are overridden",
	Long: `List the built-in prompt templates. A file with the same name in the prompt
override directory (prompts.dir, or the autofix/prompts directory under the
user config directory) replaces the built-in template.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		dir := cfg.Prompts.Dir
		if dir == "" {
			dir = config.UserPromptsDir()
		}

		entries, err := prompts.NewLoader(dir).List()
		if err != nil {
			return err
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Template", "Source").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, e := range entries {
			source := "built-in"
			if e.Overridden {
				source = "override"
			}
			t = t.Row(e.Name, source)
		}

		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		if dir != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Override directory: %s\n", dir)
		}
		return nil
	},
}
