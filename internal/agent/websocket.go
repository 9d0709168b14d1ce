package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/goal-architect/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsInbound is a client frame on /ws/chat.
type wsInbound struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// wsOutbound is a server frame on /ws/chat.
type wsOutbound struct {
	Type  string        `json:"type"`
	Reply *ChatResponse `json:"reply,omitempty"`
	Error string        `json:"error,omitempty"`
}

// closer is the part of a websocket connection the registry needs.
type closer interface {
	Close(code websocket.StatusCode, reason string) error
}

// ConnRegistry tracks the open chat connection per user and thread. A new
// connection for the same thread replaces and closes the previous one.
type ConnRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]closer
	logger *slog.Logger
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry(logger *slog.Logger) *ConnRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnRegistry{
		active: make(map[string]map[string]closer),
		logger: logger,
	}
}

// Get returns the connection registered for a user and thread, or nil.
func (m *ConnRegistry) Get(userID, threadID string) closer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID][threadID]
}

// Count returns how many connections a user has open.
func (m *ConnRegistry) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// Register records conn for a user/thread.
func (m *ConnRegistry) Register(userID, threadID string, conn closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threads, ok := m.active[userID]
	if !ok {
		threads = make(map[string]closer)
		m.active[userID] = threads
	}
	if existing, ok := threads[threadID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "thread opened elsewhere")
	}
	threads[threadID] = conn
	m.logger.Debug("Chat connection registered", "user_id", userID, "thread_id", threadID)
}

// Unregister removes conn if it is still the current one for the thread.
func (m *ConnRegistry) Unregister(userID, threadID string, conn closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threads, ok := m.active[userID]
	if !ok {
		return
	}
	if current, ok := threads[threadID]; ok && current == conn {
		delete(threads, threadID)
		if len(threads) == 0 {
			delete(m.active, userID)
		}
		m.logger.Debug("Chat connection unregistered", "user_id", userID, "thread_id", threadID)
	}
}

// Move re-keys conn from one thread to another, as happens when a
// connection opened without a thread gets one assigned by its first turn.
func (m *ConnRegistry) Move(userID, fromThread, toThread string, conn closer) {
	if fromThread == toThread {
		return
	}
	m.Unregister(userID, fromThread, conn)
	m.Register(userID, toThread, conn)
}

// CloseAll closes every registered connection.
func (m *ConnRegistry) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, threads := range m.active {
		for _, conn := range threads {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, userID)
	}
}

// HandleWebSocket handles GET /ws/chat. Each inbound "message" frame runs
// one turn and is answered by a "reply" or "error" frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	threadID := identity.ThreadIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(h.maxBody)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, threadID, ws)
	defer func() { h.conns.Unregister(userID, threadID, ws) }()

	h.logger.Info("Chat websocket opened", "user_id", userID, "thread_id", threadID)
	ctx := r.Context()
	for {
		var in wsInbound
		if err := wsjson.Read(ctx, ws, &in); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		switch in.Type {
		case "ping":
			if err := wsjson.Write(ctx, ws, wsOutbound{Type: "pong"}); err != nil {
				return
			}
			continue
		case "message":
		default:
			if err := wsjson.Write(ctx, ws, wsOutbound{Type: "error", Error: "unknown frame type"}); err != nil {
				return
			}
			continue
		}

		if in.ThreadID != "" {
			in.ThreadID = identity.SanitizeThreadID(in.ThreadID)
			if in.ThreadID == "" {
				if err := wsjson.Write(ctx, ws, wsOutbound{Type: "error", Error: "invalid thread_id"}); err != nil {
					return
				}
				continue
			}
		} else {
			in.ThreadID = threadID
		}

		out := h.wsTurn(ctx, userID, in)
		if out.Reply != nil && out.Reply.ThreadID != threadID {
			h.conns.Move(userID, threadID, out.Reply.ThreadID, ws)
			threadID = out.Reply.ThreadID
		}
		if err := wsjson.Write(ctx, ws, out); err != nil {
			h.logger.Debug("WebSocket write failed", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) wsTurn(ctx context.Context, userID string, in wsInbound) wsOutbound {
	if !h.rateLimiter.Allow(userID) {
		return wsOutbound{Type: "error", Error: "rate limit exceeded"}
	}
	resp, err := h.service.Turn(ctx, ChatRequest{
		ThreadID: in.ThreadID,
		Message:  in.Message,
		UserID:   userID,
	}, "chat_ws")
	if err != nil {
		status, msg := serviceErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("WebSocket turn failed", "error", err, "user_id", userID)
		}
		return wsOutbound{Type: "error", Error: msg}
	}
	return wsOutbound{Type: "reply", Reply: resp}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.origin == "*" || origin == h.origin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.origin)
	return false
}
