package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. Replies are returned in order;
// once exhausted, the last reply repeats. Errs[i], when set, fails call i.
type MockClient struct {
	mu            sync.Mutex
	Replies       []string
	Errs          []error
	DefaultResult string
	PromptHistory []string
}

// NewMockClient creates a MockClient that answers with replies in order.
func NewMockClient(replies ...string) *MockClient {
	return &MockClient{
		Replies:       replies,
		DefaultResult: `{"files":[]}`,
	}
}

func (m *MockClient) Complete(_ context.Context, prompt string) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.PromptHistory)
	m.PromptHistory = append(m.PromptHistory, prompt)

	if call < len(m.Errs) && m.Errs[call] != nil {
		return nil, m.Errs[call]
	}

	content := m.DefaultResult
	switch {
	case call < len(m.Replies):
		content = m.Replies[call]
	case len(m.Replies) > 0:
		content = m.Replies[len(m.Replies)-1]
	}
	return &Completion{Content: content, Model: "mock"}, nil
}

// GetPromptHistory returns all prompts sent to this mock.
func (m *MockClient) GetPromptHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.PromptHistory))
	copy(result, m.PromptHistory)
	return result
}
