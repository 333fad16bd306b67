package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// BusinessHeader lets embedded widgets name their tenant without a body field.
const BusinessHeader = "X-Business-Id"

const maxChatBodyBytes = 16 << 10

type historyReader interface {
	GetMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error)
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service Service
	history historyReader
	logger  *logging.Logger
}

// NewHandler creates a conversation handler. history may be nil.
func NewHandler(service Service, history historyReader, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{service: service, logger: logger}
	if store, ok := history.(*ConversationStore); !ok || store != nil {
		h.history = history
	}
	return h
}

type chatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	BusinessID string `json:"businessId"`
}

type chatResponse struct {
	Message   string `json:"message"`
	AgentType string `json:"agentType"`
	SessionID string `json:"sessionId"`
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error": "message is required"}`, http.StatusBadRequest)
		return
	}
	businessID := strings.TrimSpace(req.BusinessID)
	if businessID == "" {
		businessID = strings.TrimSpace(r.Header.Get(BusinessHeader))
	}

	reply, err := h.service.HandleMessage(r.Context(), Request{
		SessionID:  req.SessionID,
		BusinessID: businessID,
		Message:    req.Message,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			http.Error(w, `{"error": "message is required"}`, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrSessionBusinessMismatch) {
			http.Error(w, `{"error": "session belongs to another business"}`, http.StatusConflict)
			return
		}
		h.logger.Error("failed to handle chat message", "session_id", req.SessionID, "error", err)
		http.Error(w, `{"error": "failed to process message"}`, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, chatResponse{
		Message:   reply.Message,
		AgentType: string(reply.AgentType),
		SessionID: reply.SessionID,
	})
}

// GetSession handles GET /sessions/{sessionID} on the admin router.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		http.Error(w, `{"error": "failed to load session"}`, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"stage":   session.Stage(),
	})
}

// GetTranscript handles GET /sessions/{sessionID}/messages on the admin router.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, `{"error": "conversation history is not configured"}`, http.StatusServiceUnavailable)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.history.GetMessages(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load transcript", "session_id", sessionID, "error", err)
		http.Error(w, `{"error": "failed to load transcript"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []MessageRecord{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// AdminRoutes mounts the session inspection endpoints.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{sessionID}", h.GetSession)
	r.Get("/{sessionID}/messages", h.GetTranscript)
	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
