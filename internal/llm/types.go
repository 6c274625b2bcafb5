package llm

import "context"

// Client sends a single prompt to a language model and returns its reply.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Completion is a model reply.
type Completion struct {
	Content string
	Model   string
}

// ProposedFile is one file the model wants written, with its complete new
// content.
type ProposedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Response is a validated model proposal.
type Response struct {
	Files []ProposedFile `json:"files"`

	// Raw is the reply text the proposal was decoded from.
	Raw string `json:"-"`
}
