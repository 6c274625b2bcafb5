package config

import "time"

// Config is the top-level autofix configuration.
type Config struct {
	Model     ModelConfig     `json:"model"`
	GitHub    GitHubConfig    `json:"github"`
	Workspace WorkspaceConfig `json:"workspace"`
	Snapshot  SnapshotConfig  `json:"snapshot"`
	Tests     TestsConfig     `json:"tests"`
	Prompts   PromptsConfig   `json:"prompts"`
	Progress  ProgressConfig  `json:"progress"`
}

// ModelConfig controls the language model used to propose fixes.
// Provider, Model and BaseURL are optional; when empty they are derived from
// the shape of APIKey.
type ModelConfig struct {
	APIKey      string  `json:"api_key,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	MaxAttempts int     `json:"max_attempts"`
	RetryDelay  string  `json:"retry_delay"`
	Timeout     string  `json:"timeout"`
}

// ParseRetryDelay returns the delay between model attempts.
func (m ModelConfig) ParseRetryDelay() time.Duration {
	d, err := time.ParseDuration(m.RetryDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// ParseTimeout returns the per-request model timeout.
func (m ModelConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GitHubConfig holds GitHub API and publishing settings.
type GitHubConfig struct {
	Token          string `json:"token,omitempty"`
	APIURL         string `json:"api_url,omitempty"`
	GraphQLURL     string `json:"graphql_url,omitempty"`
	BaseBranch     string `json:"base_branch,omitempty"`
	BranchTemplate string `json:"branch_template"`
	CommitAuthor   string `json:"commit_author"`
	CommitEmail    string `json:"commit_email"`
}

// WorkspaceConfig controls where the run clones the repository and what it
// leaves behind.
type WorkspaceConfig struct {
	Dir         string `json:"dir"`
	PatchFile   string `json:"patch_file"`
	ReportFile  string `json:"report_file"`
	LockTimeout string `json:"lock_timeout"`

	// InsteadOf rewrites clone URL prefixes, like git's url.<base>.insteadOf.
	// Keys are the prefix to match, values the replacement.
	InsteadOf map[string]string `json:"instead_of,omitempty"`
}

// ParseLockTimeout returns how long to wait for the workspace lock.
func (w WorkspaceConfig) ParseLockTimeout() time.Duration {
	d, err := time.ParseDuration(w.LockTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// SnapshotConfig selects which repository files are sent to the model.
type SnapshotConfig struct {
	Extensions   []string `json:"extensions"`
	ExcludeDirs  []string `json:"exclude_dirs"`
	ExcludeFiles []string `json:"exclude_files"`
}

// TestsConfig controls the post-apply test and refinement loop.
type TestsConfig struct {
	Enabled        *bool  `json:"enabled"`
	MaxAttempts    int    `json:"max_attempts"`
	InstallCommand string `json:"install_command,omitempty"`
	TestCommand    string `json:"test_command,omitempty"`
	Timeout        string `json:"timeout"`
}

// IsEnabled returns whether tests run after apply.
// Defaults to true when not explicitly set.
func (t TestsConfig) IsEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// ParseTimeout returns the timeout for a single install or test command.
func (t TestsConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// PromptsConfig points at a directory of prompt overrides.
type PromptsConfig struct {
	Dir string `json:"dir,omitempty"`
}

// ProgressConfig sizes the progress event buffer.
type ProgressConfig struct {
	Buffer int `json:"buffer"`
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model: ModelConfig{
			MaxTokens:   4000,
			Temperature: 0.3,
			MaxAttempts: 3,
			RetryDelay:  "2s",
			Timeout:     "5m",
		},
		GitHub: GitHubConfig{
			BranchTemplate: "fix/issue-{{.Number}}-ai",
			CommitAuthor:   "autofix",
			CommitEmail:    "autofix@users.noreply.github.com",
		},
		Workspace: WorkspaceConfig{
			Dir:         "workspace",
			PatchFile:   "patch.diff",
			ReportFile:  ".autofix-report.md",
			LockTimeout: "5s",
		},
		Snapshot: SnapshotConfig{
			Extensions:   []string{".js", ".ts", ".md", ".json", ".html", ".css", ".txt"},
			ExcludeDirs:  []string{".git", "node_modules"},
			ExcludeFiles: []string{"package-lock.json"},
		},
		Tests: TestsConfig{
			Enabled:     boolPtr(true),
			MaxAttempts: 2,
			Timeout:     "10m",
		},
		Progress: ProgressConfig{
			Buffer: 64,
		},
	}
}
