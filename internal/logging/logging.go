package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// If stderr is a terminal, uses colored text format. Otherwise, uses JSON format.
func Setup(verbose bool) *slog.Logger {
	logger := New(os.Stderr, verbose, !isTerminal())
	slog.SetDefault(logger)
	return logger
}

// New builds a charmbracelet-backed slog logger writing to w.
func New(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	if jsonFormat {
		handler.SetFormatter(charmlog.JSONFormatter)
	}

	return slog.New(handler)
}

// WithContext stores logger in ctx so that clog.FromContext returns it.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return clog.WithLogger(ctx, clog.NewLogger(logger))
}

// With returns a context whose logger carries the given attributes.
func With(ctx context.Context, args ...any) context.Context {
	return clog.WithLogger(ctx, clog.FromContext(ctx).With(args...))
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
