package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	httpmiddleware "github.com/wolfman30/sitelead-ai/internal/http/middleware"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/support"
	"github.com/wolfman30/sitelead-ai/internal/webchat"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	LeadsHandler        *leads.Handler
	BusinessHandler     *business.Handler
	SupportHandler      *support.Handler
	MetricsHandler      http.Handler
	ReadinessChecks     map[string]Check

	DefaultBusinessID  string
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimiter        httpmiddleware.Limiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.ConversationHandler == nil {
		panic("router: conversation handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	r.Get("/ready", readiness(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Customer-facing endpoints.
	r.Group(func(public chi.Router) {
		if cfg.RateLimiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger))
		}
		public.With(middleware.Compress(5)).Post("/chat", cfg.ConversationHandler.Chat)
		if cfg.WebChatHandler != nil {
			public.With(withBusinessID(cfg.DefaultBusinessID)).Get("/chat/ws", cfg.WebChatHandler.HandleWebSocket)
			public.Get("/chat/history", cfg.WebChatHandler.HandleHistory)
		}
		if cfg.LeadsHandler != nil {
			public.With(withBusinessID(cfg.DefaultBusinessID)).Post("/leads/web", cfg.LeadsHandler.CreateWebLead)
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(middleware.Compress(5))
			admin.Mount("/sessions", cfg.ConversationHandler.AdminRoutes())

			admin.Route("/businesses/{businessID}", func(b chi.Router) {
				b.Use(httpmiddleware.RequireBusinessAccess)
				if cfg.BusinessHandler != nil {
					b.Get("/config", cfg.BusinessHandler.GetConfig)
					b.Put("/config", cfg.BusinessHandler.UpdateConfig)
				}
				if cfg.LeadsHandler != nil {
					b.Mount("/leads", cfg.LeadsHandler.AdminRoutes())
				}
				if cfg.SupportHandler != nil {
					b.Mount("/escalations", cfg.SupportHandler.EscalationRoutes())
					b.Mount("/tasks", cfg.SupportHandler.TaskRoutes())
				}
			})
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
