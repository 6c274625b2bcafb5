package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alanmeadows/autofix/internal/config"
	"github.com/alanmeadows/autofix/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config
	rootCmd    = &cobra.Command{
		Use:   "autofix",
		Short: "Turn a GitHub issue into a tested pull request",
		Long: `Autofix reads a GitHub issue, asks a language model for a fix against a fresh
clone of the repository, applies it as a patch, runs the project's tests and
opens a pull request with the result.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSONC config file merged over the user config")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger := logging.Setup(verbose)
		cmd.SetContext(logging.WithContext(cmd.Context(), logger))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig returns the merged configuration, loading it on first use.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg
	return cfg, nil
}

// userConfigTarget is the file `config set` edits.
func userConfigTarget() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	p := config.UserConfigPath()
	if p == "" {
		return "", fmt.Errorf("cannot determine user config directory")
	}
	return p, nil
}
