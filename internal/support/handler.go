package support

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// Handler exposes escalations and tasks to the admin API.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("support: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// EscalationRoutes mounts under /businesses/{businessID}/escalations.
func (h *Handler) EscalationRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListEscalations)
	r.Get("/{escalationID}", h.GetEscalation)
	r.Patch("/{escalationID}/status", h.UpdateEscalationStatus)
	return r
}

// TaskRoutes mounts under /businesses/{businessID}/tasks.
func (h *Handler) TaskRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListTasks)
	r.Post("/{taskID}/complete", h.CompleteTask)
	return r
}

func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	filter := EscalationFilter{Limit: queryInt(r, "limit")}
	if status := r.URL.Query().Get("status"); status != "" {
		if !EscalationStatus(status).Valid() {
			http.Error(w, `{"error": "invalid status"}`, http.StatusBadRequest)
			return
		}
		filter.Status = EscalationStatus(status)
	}
	businessID := chi.URLParam(r, "businessID")
	escalations, err := h.svc.ListEscalations(r.Context(), businessID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalations": escalations, "count": len(escalations)})
}

func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "escalationID"))
	if err != nil {
		http.Error(w, `{"error": "escalation not found"}`, http.StatusNotFound)
		return
	}
	e, err := h.svc.GetEscalation(r.Context(), chi.URLParam(r, "businessID"), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateEscalationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "escalationID"))
	if err != nil {
		http.Error(w, `{"error": "escalation not found"}`, http.StatusNotFound)
		return
	}
	var req struct {
		Status EscalationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		http.Error(w, `{"error": "invalid status"}`, http.StatusBadRequest)
		return
	}
	e, err := h.svc.Transition(r.Context(), chi.URLParam(r, "businessID"), id, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := TaskFilter{Status: TaskPending, Limit: queryInt(r, "limit")}
	q := r.URL.Query()
	switch status := q.Get("status"); status {
	case "":
	case "all":
		filter.Status = ""
	case string(TaskPending), string(TaskDone):
		filter.Status = TaskStatus(status)
	default:
		http.Error(w, `{"error": "invalid status"}`, http.StatusBadRequest)
		return
	}
	if before := q.Get("due_before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			http.Error(w, `{"error": "due_before must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		filter.DueBefore = t
	}
	tasks, err := h.svc.ListTasks(r.Context(), chi.URLParam(r, "businessID"), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, `{"error": "task not found"}`, http.StatusNotFound)
		return
	}
	t, err := h.svc.CompleteTask(r.Context(), chi.URLParam(r, "businessID"), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEscalationNotFound):
		http.Error(w, `{"error": "escalation not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrTaskNotFound):
		http.Error(w, `{"error": "task not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error": "invalid status transition"}`, http.StatusConflict)
	default:
		h.logger.Error("support: request failed", "error", err)
		http.Error(w, `{"error": "internal error"}`, http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
