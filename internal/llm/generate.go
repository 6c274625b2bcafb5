package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

// ErrModelProtocol marks a model exchange that never produced a valid
// proposal.
var ErrModelProtocol = errors.New("model did not return a valid proposal")

// ExhaustedError is returned when every attempt failed. Raw holds the last
// reply received, if any, for diagnostics.
type ExhaustedError struct {
	Attempts int
	Raw      string
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrModelProtocol, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrModelProtocol }

// Generator asks a model for a proposal and retries until the reply is
// usable.
type Generator struct {
	client      Client
	maxAttempts int
	delay       time.Duration
}

// NewGenerator returns a Generator making up to maxAttempts calls, waiting a
// fixed delay between them.
func NewGenerator(client Client, maxAttempts int, delay time.Duration) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Generator{client: client, maxAttempts: maxAttempts, delay: delay}
}

// Generate sends prompt and returns the first reply that parses and
// validates. A call error, a non-JSON reply and a structurally invalid reply
// all count as a failed attempt.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Response, error) {
	var lastRaw string
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		resp, raw, err := g.attempt(ctx, prompt)
		if err == nil {
			clog.FromContext(ctx).Info("model proposed changes", "attempt", attempt, "files", len(resp.Files))
			return resp, nil
		}
		if raw != "" {
			lastRaw = raw
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("generating proposal: %w", ctxErr)
		}

		clog.FromContext(ctx).With("attempt", attempt, "max_attempts", g.maxAttempts).
			Warn("model attempt failed", "error", err)

		if attempt == g.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generating proposal: %w", ctx.Err())
		case <-time.After(g.delay):
		}
	}

	return nil, &ExhaustedError{Attempts: g.maxAttempts, Raw: lastRaw, Err: lastErr}
}

func (g *Generator) attempt(ctx context.Context, prompt string) (*Response, string, error) {
	completion, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	raw := completion.Content

	data, err := extractJSON(raw)
	if err != nil {
		return nil, raw, err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, raw, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := Validate(generic); err != nil {
		return nil, raw, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, raw, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	resp.Raw = raw
	return &resp, raw, nil
}
