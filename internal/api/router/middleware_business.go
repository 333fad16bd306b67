package router

import (
	"net/http"
	"strings"

	"github.com/wolfman30/sitelead-ai/internal/conversation"
)

// withBusinessID makes sure public requests name a tenant. Requests without
// the header are attributed to defaultID; with no default they are rejected.
func withBusinessID(defaultID string) func(http.Handler) http.Handler {
	defaultID = strings.TrimSpace(defaultID)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			businessID := strings.TrimSpace(r.Header.Get(conversation.BusinessHeader))
			if businessID == "" {
				businessID = strings.TrimSpace(r.URL.Query().Get("business"))
			}
			if businessID == "" {
				businessID = defaultID
			}
			if businessID == "" {
				http.Error(w, `{"error": "missing X-Business-Id"}`, http.StatusBadRequest)
				return
			}
			r.Header.Set(conversation.BusinessHeader, businessID)
			next.ServeHTTP(w, r)
		})
	}
}
