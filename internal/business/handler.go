package business

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

type configStore interface {
	Get(ctx context.Context, businessID string) (*Config, error)
	Set(ctx context.Context, cfg *Config) error
}

// Handler provides admin endpoints for business configuration.
type Handler struct {
	store  configStore
	logger *logging.Logger
}

func NewHandler(store configStore, logger *logging.Logger) *Handler {
	if store == nil {
		panic("business: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts under /admin/businesses.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{businessID}/config", h.GetConfig)
	r.Put("/{businessID}/config", h.UpdateConfig)
	return r
}

// GetConfig handles GET /admin/businesses/{businessID}/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	cfg, err := h.store.Get(r.Context(), businessID)
	if err != nil {
		h.logger.Error("failed to get business config", "business_id", businessID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfigRequest carries a partial update; nil fields are left alone.
type UpdateConfigRequest struct {
	Name          *string            `json:"name,omitempty"`
	Greeting      *string            `json:"greeting,omitempty"`
	ContactPhone  *string            `json:"contact_phone,omitempty"`
	Timezone      *string            `json:"timezone,omitempty"`
	PriceTiers    []PriceTier        `json:"price_tiers,omitempty"`
	Notifications *NotificationPrefs `json:"notifications,omitempty"`
}

// UpdateConfig handles PUT /admin/businesses/{businessID}/config.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), businessID)
	if err != nil {
		h.logger.Error("failed to get business config", "business_id", businessID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Greeting != nil {
		cfg.Greeting = *req.Greeting
	}
	if req.ContactPhone != nil {
		cfg.ContactPhone = *req.ContactPhone
	}
	if req.Timezone != nil {
		cfg.Timezone = *req.Timezone
	}
	if len(req.PriceTiers) > 0 {
		cfg.PriceTiers = req.PriceTiers
	}
	if req.Notifications != nil {
		cfg.Notifications = *req.Notifications
	}
	cfg.BusinessID = businessID

	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save business config", "business_id", businessID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info("business config updated", "business_id", businessID)
	writeJSON(w, http.StatusOK, cfg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
