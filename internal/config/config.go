package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/tidwall/jsonc"
)

// LoadOptions controls where Load looks for configuration.
// Zero values select the standard locations.
type LoadOptions struct {
	// UserPath is the user-level JSONC file. Defaults to
	// <UserConfigDir>/autofix/autofix.jsonc.
	UserPath string
	// Path is an explicit JSONC file merged over the user file.
	Path string
	// DotEnvPath is a .env file consulted for secrets. Defaults to ".env".
	DotEnvPath string
	// Lookuper overrides the process environment.
	Lookuper envconfig.Lookuper
}

// envOverrides are the environment variables autofix honors.
type envOverrides struct {
	GitHubToken string `env:"GITHUB_TOKEN"`
	ModelKey    string `env:"OPENAI_API_KEY"`
	Model       string `env:"AUTOFIX_MODEL"`
	BaseBranch  string `env:"AUTOFIX_BASE_BRANCH"`
}

// Load reads and merges configuration.
// Resolution order: defaults → user config (~/.config/autofix/autofix.jsonc)
// → explicit config file → .env file → environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, LoadOptions{Path: path})
}

// LoadWith is Load with explicit file locations and environment.
func LoadWith(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	userPath := opts.UserPath
	if userPath == "" {
		userPath = UserConfigPath()
	}
	if userPath != "" {
		userMap, err := loadJSONC(userPath)
		switch {
		case err == nil:
			if err := mergeIntoConfig(&cfg, userMap); err != nil {
				return nil, fmt.Errorf("merging user config: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	if opts.Path != "" {
		m, err := loadJSONC(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", opts.Path, err)
		}
		if err := mergeIntoConfig(&cfg, m); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", opts.Path, err)
		}
	}

	if err := applyEnvOverrides(ctx, &cfg, opts); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UserConfigPath returns the user-level config file location, or empty
// string if the user config directory cannot be determined.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "autofix", "autofix.jsonc")
}

// UserPromptsDir returns the default prompt override directory.
func UserPromptsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "autofix", "prompts")
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	// Deep merge: src overrides dst
	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// applyEnvOverrides layers secrets from the environment and the .env file
// over the config. Real environment variables win over .env entries.
func applyEnvOverrides(ctx context.Context, cfg *Config, opts LoadOptions) error {
	lookuper := opts.Lookuper
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	dotEnvPath := opts.DotEnvPath
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}
	dotEnv, err := godotenv.Read(dotEnvPath)
	switch {
	case err == nil:
		lookuper = envconfig.MultiLookuper(lookuper, envconfig.MapLookuper(dotEnv))
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("reading %s: %w", dotEnvPath, err)
	}

	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}

	if env.GitHubToken != "" {
		cfg.GitHub.Token = env.GitHubToken
	}
	if env.ModelKey != "" {
		cfg.Model.APIKey = env.ModelKey
	}
	if env.Model != "" {
		cfg.Model.Model = env.Model
	}
	if env.BaseBranch != "" {
		cfg.GitHub.BaseBranch = env.BaseBranch
	}
	return nil
}
