package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/leads/web", h.CreateWebLead)
	r.Mount("/admin/businesses/{businessID}/leads", h.AdminRoutes())
	return r
}

func TestCreateWebLead(t *testing.T) {
	repo := NewInMemoryRepository()
	router := newTestRouter(NewHandler(repo, logging.Default()))

	body, _ := json.Marshal(map[string]string{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"inquiry": "Need a new storefront",
	})
	req := httptest.NewRequest(http.MethodPost, "/leads/web", bytes.NewReader(body))
	req.Header.Set("X-Business-Id", "acme")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var lead Lead
	require.NoError(t, json.NewDecoder(w.Body).Decode(&lead))
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "acme", lead.BusinessID)
	assert.Equal(t, "web_form", lead.Source)
	assert.Equal(t, StatusNew, lead.Status)
}

func TestCreateWebLead_RunsCreatedHook(t *testing.T) {
	var hooked []*Lead
	hook := func(_ context.Context, lead *Lead) error {
		hooked = append(hooked, lead)
		return assert.AnError
	}
	router := newTestRouter(NewHandler(NewInMemoryRepository(), logging.Default(), WithCreatedHook(hook)))

	body := `{"name":"Jane Doe","phone":"555-000-1111"}`
	req := httptest.NewRequest(http.MethodPost, "/leads/web", bytes.NewReader([]byte(body)))
	req.Header.Set("X-Business-Id", "acme")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "hook errors do not fail the request")
	require.Len(t, hooked, 1)
	assert.Equal(t, "Jane Doe", hooked[0].Name)
}

func TestCreateWebLead_ValidationErrors(t *testing.T) {
	router := newTestRouter(NewHandler(NewInMemoryRepository(), logging.Default()))

	tests := []struct {
		name     string
		business string
		body     string
	}{
		{"missing business", "", `{"name":"Jane","email":"jane@example.com"}`},
		{"missing name", "acme", `{"email":"jane@example.com"}`},
		{"missing contact", "acme", `{"name":"Jane"}`},
		{"bad json", "acme", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/leads/web", bytes.NewBufferString(tt.body))
			if tt.business != "" {
				req.Header.Set("X-Business-Id", tt.business)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListLeads(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	_, err := repo.Create(ctx, &CreateLeadRequest{BusinessID: "acme", Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &CreateLeadRequest{BusinessID: "other", Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	router := newTestRouter(NewHandler(repo, logging.Default()))
	req := httptest.NewRequest(http.MethodGet, "/admin/businesses/acme/leads/?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ListLeadsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, "A", resp.Leads[0].Name)
}

func TestListLeads_RejectsBadFilters(t *testing.T) {
	router := newTestRouter(NewHandler(NewInMemoryRepository(), logging.Default()))

	for _, query := range []string{"?status=bogus", "?since=yesterday"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/businesses/acme/leads/"+query, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestGetLeadAndUpdateStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	lead, err := repo.Create(context.Background(), &CreateLeadRequest{BusinessID: "acme", Name: "A", Phone: "555-123-4567"})
	require.NoError(t, err)
	router := newTestRouter(NewHandler(repo, logging.Default()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/businesses/acme/leads/"+lead.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/businesses/other/leads/"+lead.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/admin/businesses/acme/leads/"+lead.ID+"/status",
		bytes.NewBufferString(`{"status":"contacted"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var updated Lead
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, StatusContacted, updated.Status)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/admin/businesses/acme/leads/"+lead.ID+"/status",
		bytes.NewBufferString(`{"status":"new"}`)))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/admin/businesses/acme/leads/"+lead.ID+"/status",
		bytes.NewBufferString(`{"status":"unknown"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
