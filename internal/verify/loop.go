package verify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// ErrTestsFailed is reported when every attempt ended with failing tests.
var ErrTestsFailed = errors.New("tests still failing")

// maxOutput caps the test output handed to the refiner.
const maxOutput = 8000

// Refiner tries to repair the workspace given the failing test output.
type Refiner interface {
	Refine(ctx context.Context, dir, testOutput string) error
}

// RefinerFunc adapts a function to Refiner.
type RefinerFunc func(ctx context.Context, dir, testOutput string) error

func (f RefinerFunc) Refine(ctx context.Context, dir, testOutput string) error {
	return f(ctx, dir, testOutput)
}

// Options configures a Loop.
type Options struct {
	MaxAttempts int
	Timeout     time.Duration
	Refiner     Refiner
}

// Outcome summarizes a Loop run.
type Outcome struct {
	Ran         bool
	Passed      bool
	Attempts    int
	Refinements int
	Output      string
}

// Loop installs dependencies, runs the tests and asks the Refiner for a
// correction between failed attempts.
type Loop struct {
	maxAttempts int
	timeout     time.Duration
	refiner     Refiner
}

// NewLoop creates a Loop.
func NewLoop(opts Options) *Loop {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	return &Loop{
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		refiner:     opts.Refiner,
	}
}

// Run executes plan in dir. A failing suite is reported through Outcome, not
// as an error; only cancellation is returned as an error.
func (l *Loop) Run(ctx context.Context, dir string, plan Plan) (*Outcome, error) {
	log := clog.FromContext(ctx).With("project", plan.Kind)
	out := &Outcome{Ran: true}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		out.Attempts = attempt
		log.Info("running tests", "attempt", attempt, "max_attempts", l.maxAttempts)

		output, err := l.runOnce(ctx, dir, plan)
		out.Output = output
		if err == nil {
			out.Passed = true
			log.Info("tests passed", "attempt", attempt)
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("running tests: %w", ctxErr)
		}
		log.Warn("tests failed", "attempt", attempt, "error", err)

		if attempt == l.maxAttempts || l.refiner == nil {
			continue
		}
		out.Refinements++
		if err := l.refiner.Refine(ctx, dir, Tail(output, maxOutput)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, fmt.Errorf("refining fix: %w", ctxErr)
			}
			log.Warn("refinement failed", "attempt", attempt, "error", err)
		}
	}

	return out, nil
}

func (l *Loop) runOnce(ctx context.Context, dir string, plan Plan) (string, error) {
	var buf strings.Builder
	if plan.Install != "" {
		output, err := l.shell(ctx, dir, plan.Install)
		buf.WriteString(output)
		if err != nil {
			return buf.String(), fmt.Errorf("install %q: %w", plan.Install, err)
		}
	}
	output, err := l.shell(ctx, dir, plan.Test)
	buf.WriteString(output)
	if err != nil {
		return buf.String(), fmt.Errorf("test %q: %w", plan.Test, err)
	}
	return buf.String(), nil
}

func (l *Loop) shell(ctx context.Context, dir, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	// Children of sh may keep the output pipe open after a timeout kill.
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// Tail returns at most the last n bytes of s, starting at a line boundary
// when one is available.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
