package patch

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// gitTimeout bounds a single git invocation.
const gitTimeout = 2 * time.Minute

// runGit runs git in dir and returns its separated output streams.
func runGit(ctx context.Context, dir string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// exitCode returns the process exit status carried by err, or -1.
func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
