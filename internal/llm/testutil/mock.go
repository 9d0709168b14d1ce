// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/ashureev/goal-architect/internal/llm"
)

var _ llm.Client = (*MockClient)(nil)

// MockClient is a thread-safe scripted model.
//
//	mock := &MockClient{Replies: []string{`{"intent": "GOAL_FORMATION", "to_user": "Let's go"}`}}
type MockClient struct {
	mu sync.Mutex

	// Replies are returned in order; the last one repeats once exhausted.
	Replies []string

	// Err, when set, is returned instead of a reply.
	Err error

	// Errs are returned per call before Replies are consulted; nil entries
	// fall through to Replies.
	Errs []error

	requests []llm.Request
	next     int
}

// Invoke implements llm.Client.
func (m *MockClient) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.requests)
	m.requests = append(m.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, llm.NewTransientError(err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if call < len(m.Errs) && m.Errs[call] != nil {
		return nil, m.Errs[call]
	}

	if len(m.Replies) == 0 {
		return &llm.Response{Content: "", Model: "mock"}, nil
	}
	idx := m.next
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	} else {
		m.next++
	}
	return &llm.Response{Content: m.Replies[idx], Model: "mock"}, nil
}

// Requests returns a copy of every request received.
func (m *MockClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Invoke calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
