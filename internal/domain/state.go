package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Stage   Stage  `json:"stage,omitempty"`
}

// AgentMessage is an outbound message tagged with the agent that produced it.
type AgentMessage struct {
	Agent   Stage  `json:"agent"`
	Message string `json:"message"`
}

// Intent records the most recent routing decision of the orchestrator.
type Intent struct {
	Name    string `json:"intent"`
	GoalID  string `json:"goal_id,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// StructuredData is the only channel through which one stage hands
// results to another.
type StructuredData struct {
	Goal        *Goal       `json:"goal,omitempty"`
	GoalID      string      `json:"goal_id,omitempty"`
	Milestones  []Milestone `json:"milestones,omitempty"`
	Intent      *Intent     `json:"intent,omitempty"`
	Reflections []string    `json:"reflections,omitempty"`
	Plan        *DailyPlan  `json:"plan,omitempty"`
	LoggedCount int         `json:"logged_count,omitempty"`
}

// PlanState is the per-thread conversation record carried across turns.
type PlanState struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Stage    Stage  `json:"stage"`

	// MessageHistory is append-only for the life of the thread.
	MessageHistory []Message `json:"message_history"`

	// CurrentContext holds only messages exchanged under the current stage.
	CurrentContext []Message `json:"current_context"`

	LastUserMessage string `json:"last_user_message"`

	// UserMessageConsumed is set once a node has answered LastUserMessage
	// and it must not be replayed to the next node in the same turn.
	UserMessageConsumed bool `json:"user_message_consumed"`

	StructuredData StructuredData `json:"structured_data"`
	ToUser         []AgentMessage `json:"to_user"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlanState returns the initial state of a thread.
func NewPlanState(threadID, userID string) *PlanState {
	now := time.Now().UTC()
	return &PlanState{
		ThreadID:       threadID,
		UserID:         userID,
		Stage:          StageOrchestrator,
		MessageHistory: []Message{},
		CurrentContext: []Message{},
		ToUser:         []AgentMessage{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy of the state so a node can work on it without
// touching the caller's value.
func (s *PlanState) Clone() (*PlanState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal plan state: %w", err)
	}
	var out PlanState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal plan state: %w", err)
	}
	return &out, nil
}

// BeginTurn records a new user utterance and clears the outbound queue.
// The utterance enters the history here, once, even if several stages
// see it during the turn.
func (s *PlanState) BeginTurn(message string) {
	s.LastUserMessage = message
	s.UserMessageConsumed = false
	s.ToUser = []AgentMessage{}
	if !s.Stage.Valid() {
		s.Stage = StageOrchestrator
	}
	if message != "" {
		s.MessageHistory = append(s.MessageHistory, Message{Role: RoleUser, Content: message, Stage: s.Stage})
	}
	s.UpdatedAt = time.Now().UTC()
}

// PendingUserMessage returns the user utterance that has not been answered
// yet, or "" when there is none.
func (s *PlanState) PendingUserMessage() string {
	if s.UserMessageConsumed {
		return ""
	}
	return s.LastUserMessage
}

// Append adds msg to both the stage context and the full history.
func (s *PlanState) Append(msg Message) {
	s.CurrentContext = append(s.CurrentContext, msg)
	s.MessageHistory = append(s.MessageHistory, msg)
}

// Say queues msg for the user on behalf of agent.
func (s *PlanState) Say(agent Stage, msg string) {
	s.ToUser = append(s.ToUser, AgentMessage{Agent: agent, Message: msg})
}

// TransitionTo moves the thread to next. Any move to a different stage
// starts that stage with an empty context.
func (s *PlanState) TransitionTo(next Stage) {
	if next == s.Stage {
		return
	}
	s.Stage = next
	s.CurrentContext = []Message{}
}
