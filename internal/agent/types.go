package agent

import "github.com/ashureev/goal-architect/internal/domain"

// ChatRequest is one user utterance addressed to a thread. An empty
// ThreadID starts a new thread.
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
	UserID   string `json:"-"`
}

// ChatResponse is what a turn produced for the user.
type ChatResponse struct {
	ThreadID string                `json:"thread_id"`
	Stage    domain.Stage          `json:"stage"`
	ToUser   []domain.AgentMessage `json:"to_user"`

	// Pending is set when no stage answered the message, e.g. because the
	// model call failed. The client may resend it.
	Pending bool `json:"pending"`
}

// StateView is the read-only snapshot returned by the state endpoint.
type StateView struct {
	ThreadID       string                `json:"thread_id"`
	Stage          domain.Stage          `json:"stage"`
	StructuredData domain.StructuredData `json:"structured_data"`
	CurrentContext []domain.Message      `json:"current_context"`
	MessageHistory []domain.Message      `json:"message_history"`
	ToUser         []domain.AgentMessage `json:"to_user"`
}

func newStateView(s *domain.PlanState) *StateView {
	return &StateView{
		ThreadID:       s.ThreadID,
		Stage:          s.Stage,
		StructuredData: s.StructuredData,
		CurrentContext: s.CurrentContext,
		MessageHistory: s.MessageHistory,
		ToUser:         s.ToUser,
	}
}
