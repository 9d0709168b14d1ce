package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/metrics"
	"github.com/ashureev/goal-architect/internal/store"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var (
	// ErrTurnInProgress is returned when a thread is already running a turn.
	ErrTurnInProgress = errors.New("turn already in progress for thread")

	// ErrThreadOwnership is returned when a thread belongs to another user.
	ErrThreadOwnership = errors.New("thread belongs to another user")

	// ErrEmptyMessage is returned for blank utterances.
	ErrEmptyMessage = errors.New("message is required")
)

// Service runs conversation turns against persisted thread state.
type Service struct {
	graph   *Graph
	states  store.StateStore
	metrics *metrics.Metrics
	convLog ConversationLogger
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a turn service.
func NewService(graph *Graph, states store.StateStore, m *metrics.Metrics, convLog ConversationLogger, logger *slog.Logger) *Service {
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		graph:    graph,
		states:   states,
		metrics:  m,
		convLog:  convLog,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (s *Service) acquire(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[threadID]; busy {
		return false
	}
	s.inFlight[threadID] = struct{}{}
	return true
}

func (s *Service) release(threadID string) {
	s.mu.Lock()
	delete(s.inFlight, threadID)
	s.mu.Unlock()
}

// Turn feeds one user message through the graph and persists the result.
// Turns on the same thread never overlap; a second caller gets
// ErrTurnInProgress.
func (s *Service) Turn(ctx context.Context, req ChatRequest, channel string) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	if !s.acquire(threadID) {
		s.metrics.Turn("busy")
		return nil, ErrTurnInProgress
	}
	defer s.release(threadID)

	log := s.logger.With("thread_id", threadID, "user_id", req.UserID)

	state, err := s.states.LoadState(ctx, threadID)
	if err != nil {
		s.metrics.Turn("error")
		return nil, fmt.Errorf("load thread state: %w", err)
	}
	if state == nil {
		state = domain.NewPlanState(threadID, req.UserID)
		log.Info("Starting new thread")
	} else if state.UserID != req.UserID {
		s.metrics.Turn("forbidden")
		return nil, ErrThreadOwnership
	}

	state.BeginTurn(message)
	entered := state.Stage
	s.logEvent(ctx, req.UserID, threadID, channel, "inbound", "chat_user_message", entered, message)

	start := time.Now()
	out, runErr := s.graph.Run(ctx, state)
	if runErr != nil {
		log.Error("Turn failed", "error", runErr, "stage", out.Stage.String())
	}

	// Whatever the graph managed to produce is kept, including the user
	// message that started the turn.
	if err := s.states.SaveState(context.WithoutCancel(ctx), out); err != nil {
		s.metrics.Turn("error")
		return nil, fmt.Errorf("save thread state: %w", err)
	}

	resp := &ChatResponse{
		ThreadID: threadID,
		Stage:    out.Stage,
		ToUser:   out.ToUser,
		Pending:  !out.UserMessageConsumed,
	}

	outcome := "ok"
	switch {
	case runErr != nil:
		outcome = "error"
		resp.ToUser = append(resp.ToUser, domain.AgentMessage{
			Agent:   out.Stage,
			Message: "Something went wrong while saving your progress. Please try again.",
		})
	case resp.Pending:
		outcome = "unanswered"
	}
	s.metrics.Turn(outcome)

	for _, m := range resp.ToUser {
		s.logEvent(ctx, req.UserID, threadID, channel, "outbound", "chat_agent_message", m.Agent, m.Message)
	}
	log.Info("Turn finished",
		"entered_stage", entered.String(),
		"stage", out.Stage.String(),
		"outcome", outcome,
		"messages", len(resp.ToUser),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// State returns the snapshot of a thread owned by userID.
func (s *Service) State(ctx context.Context, userID, threadID string) (*StateView, error) {
	state, err := s.states.LoadState(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread state: %w", err)
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}
	if state.UserID != userID {
		return nil, ErrThreadOwnership
	}
	return newStateView(state), nil
}

func (s *Service) logEvent(ctx context.Context, userID, threadID, channel, direction, eventType string, stage domain.Stage, content string) {
	var meta map[string]any
	if reqID := chiMiddleware.GetReqID(ctx); reqID != "" {
		meta = map[string]any{"request_id": reqID}
	}
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		ThreadID:   threadID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		Stage:      stage.String(),
		ContentRaw: content,
		Meta:       meta,
	})
}
