package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// CreatedHook runs after a web form lead is stored, typically to queue
// staff notifications. Its error is logged; the lead is already saved.
type CreatedHook func(ctx context.Context, lead *Lead) error

// Handler handles HTTP requests for leads
type Handler struct {
	repo      Repository
	logger    *logging.Logger
	onCreated CreatedHook
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithCreatedHook registers a hook for web form leads.
func WithCreatedHook(hook CreatedHook) HandlerOption {
	return func(h *Handler) { h.onCreated = hook }
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		repo:   repo,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateWebLead handles POST /leads/web from the contact form. The business
// comes from the X-Business-Id header.
func (h *Handler) CreateWebLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(r.Header.Get("X-Business-Id"))
	req.SessionID = ""
	if req.Source == "" {
		req.Source = "web_form"
	}

	lead, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, `{"error": "`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create lead", "error", err)
		http.Error(w, `{"error": "failed to create lead"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead created", "lead_id", lead.ID, "business_id", lead.BusinessID, "source", lead.Source)
	if h.onCreated != nil {
		if err := h.onCreated(r.Context(), lead); err != nil {
			h.logger.Warn("lead created hook failed", "lead_id", lead.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, lead)
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /businesses/{businessID}/leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	if businessID == "" {
		http.Error(w, `{"error": "missing business id"}`, http.StatusBadRequest)
		return
	}

	filter := ListFilter{Limit: 50}
	q := r.URL.Query()
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if status := q.Get("status"); status != "" {
		if !Status(status).Valid() {
			http.Error(w, `{"error": "invalid status"}`, http.StatusBadRequest)
			return
		}
		filter.Status = Status(status)
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, `{"error": "since must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		filter.Since = t
	}

	leads, err := h.repo.List(r.Context(), businessID, filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err, "business_id", businessID)
		http.Error(w, `{"error": "failed to list leads"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /businesses/{businessID}/leads/{leadID}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "businessID"), chi.URLParam(r, "leadID"))
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus handles PATCH /businesses/{businessID}/leads/{leadID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		http.Error(w, `{"error": "invalid status"}`, http.StatusBadRequest)
		return
	}

	businessID := chi.URLParam(r, "businessID")
	leadID := chi.URLParam(r, "leadID")
	lead, err := h.repo.UpdateStatus(r.Context(), businessID, leadID, req.Status)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.logger.Info("lead status updated", "lead_id", leadID, "business_id", businessID, "status", lead.Status)
	writeJSON(w, http.StatusOK, lead)
}

// AdminRoutes mounts under /businesses/{businessID}/leads.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListLeads)
	r.Get("/{leadID}", h.GetLead)
	r.Patch("/{leadID}/status", h.UpdateStatus)
	return r
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLeadNotFound):
		http.Error(w, `{"error": "lead not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error": "invalid status transition"}`, http.StatusConflict)
	default:
		h.logger.Error("lead repository error", "error", err)
		http.Error(w, `{"error": "internal error"}`, http.StatusInternalServerError)
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrMissingBusinessID) || errors.Is(err, ErrInvalidName) || errors.Is(err, ErrMissingContact)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
