// Package webchat serves the chat widget over a websocket. Each inbound
// message runs one engine turn and the reply is written back on the same
// connection.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	historyLimit   = 50
	turnTimeout    = 30 * time.Second
)

// HistoryReader loads the stored transcript for a session.
type HistoryReader interface {
	GetMessages(ctx context.Context, sessionID string, limit int) ([]conversation.MessageRecord, error)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message" or "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the widget receives.
type OutboundMessage struct {
	Type      string           `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	AgentType string           `json:"agentType,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one transcript line sent on reconnect.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Handler manages websocket chat connections.
type Handler struct {
	service  conversation.Service
	history  HistoryReader
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*client
}

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func (c *client) send(msg OutboundMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Option customizes a Handler.
type Option func(*Handler)

// WithAllowedOrigins restricts which pages may open a socket. Empty allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				allowed[o] = true
			}
		}
		if len(allowed) == 0 || allowed["*"] {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
}

// WithHistory replays the stored transcript when a known session reconnects.
func WithHistory(history HistoryReader) Option {
	return func(h *Handler) {
		if store, ok := history.(*conversation.ConversationStore); ok && store == nil {
			return
		}
		h.history = history
	}
}

func NewHandler(service conversation.Service, logger *logging.Logger, opts ...Option) *Handler {
	if service == nil {
		panic("webchat: conversation service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWebSocket handles GET /chat/ws?business=..&session=..
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business"))
	if businessID == "" {
		businessID = strings.TrimSpace(r.Header.Get(conversation.BusinessHeader))
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.keepAlive(ctx, c)

	defer func() {
		if sessionID != "" {
			h.unregister(sessionID, c)
		}
	}()
	if sessionID != "" {
		h.register(sessionID, c)
		_ = c.send(OutboundMessage{Type: "session", SessionID: sessionID})
		h.sendHistory(ctx, c, sessionID)
	}
	h.logger.Info("webchat: connection opened", "business_id", businessID, "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			_ = c.send(OutboundMessage{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}

		newID := h.turn(ctx, c, businessID, sessionID, msg.Text)
		if newID != "" && newID != sessionID {
			if sessionID != "" {
				h.unregister(sessionID, c)
			}
			sessionID = newID
			h.register(sessionID, c)
		}
	}
}

// turn runs one engine turn and returns the session id the engine used.
func (h *Handler) turn(ctx context.Context, c *client, businessID, sessionID, text string) string {
	_ = c.send(OutboundMessage{Type: "typing"})

	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()
	reply, err := h.service.HandleMessage(turnCtx, conversation.Request{
		SessionID:  sessionID,
		BusinessID: businessID,
		Message:    text,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		}
		_ = c.send(OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return sessionID
	}

	if err := c.send(OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      reply.Message,
		AgentType: string(reply.AgentType),
		SessionID: reply.SessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Warn("webchat: failed to write reply", "session_id", reply.SessionID, "error", err)
	}
	return reply.SessionID
}

func (h *Handler) sendHistory(ctx context.Context, c *client, sessionID string) {
	if h.history == nil {
		return
	}
	records, err := h.history.GetMessages(ctx, sessionID, historyLimit)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "session_id", sessionID, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}
	_ = c.send(OutboundMessage{Type: "history", Messages: toHistory(records)})
}

func (h *Handler) keepAlive(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) register(sessionID string, c *client) {
	h.mu.Lock()
	h.sessions[sessionID] = c
	h.mu.Unlock()
}

func (h *Handler) unregister(sessionID string, c *client) {
	h.mu.Lock()
	if h.sessions[sessionID] == c {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
}

// SendToSession pushes a message to the session's open socket, if any.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) bool {
	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.send(msg) == nil
}

// HandleHistory handles GET /chat/history?session=..
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, `{"error": "session parameter required"}`, http.StatusBadRequest)
		return
	}
	messages := []HistoryMessage{}
	if h.history != nil {
		records, err := h.history.GetMessages(r.Context(), sessionID, historyLimit)
		if err != nil {
			h.logger.Error("webchat: failed to load history", "session_id", sessionID, "error", err)
			http.Error(w, `{"error": "failed to load history"}`, http.StatusInternalServerError)
			return
		}
		messages = toHistory(records)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}

func toHistory(records []conversation.MessageRecord) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(records))
	for _, m := range records {
		role := m.Role
		if role == string(conversation.RoleAgent) {
			role = "assistant"
		}
		out = append(out, HistoryMessage{
			Role:      role,
			Text:      m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
